package conversation

import (
	"context"

	"jarvis/internal/audio"
	"jarvis/internal/capture"
	"jarvis/internal/intent"
	"jarvis/internal/speaker"
)

// Listener waits for the wake word and captures what follows it.
type Listener interface {
	Listen(ctx context.Context) (triggered bool, res capture.Result, err error)
}

// Capturer records one utterance with the given policy.
type Capturer interface {
	Capture(ctx context.Context, p capture.Policy) (capture.Result, error)
}

// Transcriber turns an utterance into text. An error or empty text means
// nothing usable was heard.
type Transcriber interface {
	Transcribe(ctx context.Context, utt *audio.Utterance) (string, error)
}

// Identifier recognises and enrolls speakers by voice.
type Identifier interface {
	Identify(utt *audio.Utterance, threshold float64) (name string, confidence float64)
	Enroll(name string, utt *audio.Utterance) error
	Current() string
}

// Refresher applies changes other processes made to the speaker store. It
// must not block.
type Refresher interface {
	Refresh() bool
}

// Answerer answers open questions. On failure text is a spoken apology.
type Answerer interface {
	Answer(ctx context.Context, question string) (text string, sources []string)
}

// IntentClassifier classifies transcripts.
type IntentClassifier interface {
	Classify(text string) intent.Intent
}

// Speaker speaks text, optionally letting the wake word cut it short.
type Speaker interface {
	Say(ctx context.Context, text string, interruptible bool) speaker.Outcome
}

// SpeechVerifier double-checks that an utterance holds speech before it
// is transcribed.
type SpeechVerifier interface {
	HasSpeech(ctx context.Context, utt *audio.Utterance) bool
}
