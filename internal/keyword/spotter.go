package keyword

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/antzucaro/matchr"

	"jarvis/internal/audio"
)

// Transcriber turns a short utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, utt *audio.Utterance) (string, error)
}

// Config configures a Spotter.
type Config struct {
	Keyword string   `yaml:"keyword"`
	Aliases []string `yaml:"aliases"`
	// Sensitivity in [0, 1]; higher accepts looser matches.
	Sensitivity float64 `yaml:"sensitivity"`

	SampleRate  int `yaml:"sample_rate"`
	FrameLength int `yaml:"frame_length"`

	// SpeechLevel is the RMS level that opens a segment. Segments longer
	// than MaxSegment are cut and only their head is transcribed.
	SpeechLevel     float64       `yaml:"speech_level"`
	MinSegment      time.Duration `yaml:"min_segment"`
	MaxSegment      time.Duration `yaml:"max_segment"`
	TrailingSilence time.Duration `yaml:"trailing_silence"`
	Timeout         time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the wake word defaults.
func DefaultConfig() Config {
	return Config{
		Keyword:         "jarvis",
		Aliases:         []string{"yarvis", "harvis", "jarbis", "charvis"},
		Sensitivity:     0.7,
		SampleRate:      16000,
		FrameLength:     512,
		SpeechLevel:     0.015,
		MinSegment:      300 * time.Millisecond,
		MaxSegment:      2 * time.Second,
		TrailingSilence: 300 * time.Millisecond,
		Timeout:         5 * time.Second,
	}
}

// Spotter is a Detector built from an energy segmenter and a transcriber.
// Short bursts of speech are transcribed and the words are compared with
// the keyword exactly, phonetically (Double Metaphone) and by Jaro-Winkler
// similarity.
type Spotter struct {
	cfg       Config
	stt       Transcriber
	targets   []string
	threshold float64
	log       *slog.Logger

	mu            sync.Mutex
	segment       []int16
	inSpeech      bool
	skipping      bool
	silenceFrames int
}

// NewSpotter validates cfg and returns a Spotter.
func NewSpotter(cfg Config, stt Transcriber, log *slog.Logger) (*Spotter, error) {
	if stt == nil {
		return nil, fmt.Errorf("keyword: transcriber is required")
	}
	if normalize(cfg.Keyword) == "" {
		return nil, fmt.Errorf("keyword: keyword is required")
	}
	if cfg.SampleRate <= 0 || cfg.FrameLength <= 0 {
		return nil, fmt.Errorf("keyword: invalid stream %d Hz / %d samples", cfg.SampleRate, cfg.FrameLength)
	}
	if cfg.Sensitivity < 0 || cfg.Sensitivity > 1 {
		return nil, fmt.Errorf("keyword: sensitivity must be in [0, 1], got %v", cfg.Sensitivity)
	}
	if log == nil {
		log = slog.Default()
	}

	targets := []string{normalize(cfg.Keyword)}
	for _, a := range cfg.Aliases {
		if n := normalize(a); n != "" {
			targets = append(targets, n)
		}
	}

	return &Spotter{
		cfg:       cfg,
		stt:       stt,
		targets:   targets,
		threshold: matchThreshold(cfg.Sensitivity),
		log:       log,
	}, nil
}

// matchThreshold maps sensitivity 0..1 to a Jaro-Winkler cut-off 0.95..0.75.
func matchThreshold(sensitivity float64) float64 {
	return 0.95 - 0.2*sensitivity
}

// SampleRate implements Detector.
func (s *Spotter) SampleRate() int { return s.cfg.SampleRate }

// FrameLength implements Detector.
func (s *Spotter) FrameLength() int { return s.cfg.FrameLength }

// Reset implements Detector.
func (s *Spotter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Spotter) reset() {
	s.segment = s.segment[:0]
	s.inSpeech = false
	s.skipping = false
	s.silenceFrames = 0
}

func (s *Spotter) samplesFor(d time.Duration) int {
	return int(d.Seconds() * float64(s.cfg.SampleRate))
}

// Process implements Detector.
func (s *Spotter) Process(ctx context.Context, frame []int16) (bool, error) {
	checkFrame(frame, s.cfg.FrameLength)

	segment := s.feed(frame)
	if segment == nil {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	text, err := s.stt.Transcribe(ctx, &audio.Utterance{Samples: segment, SampleRate: s.cfg.SampleRate})
	if err != nil {
		return false, fmt.Errorf("keyword: transcribe segment: %w", err)
	}

	hit := s.Matches(text)
	s.log.Debug("keyword segment", "text", text, "hit", hit)
	return hit, nil
}

// feed appends frame to the current segment and returns a finished
// segment when one is ready for transcription. Speech that runs past
// MaxSegment is cut there and its head is returned, since the wake word
// opens a request such as "Jarvis, qué hora es"; the rest of the burst is
// skipped until the speaker pauses.
func (s *Spotter) feed(frame []int16) []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	frameDur := time.Duration(len(frame)) * time.Second / time.Duration(s.cfg.SampleRate)
	speech := audio.RMS(frame) >= s.cfg.SpeechLevel

	switch {
	case speech && s.skipping:
		s.silenceFrames = 0
		return nil

	case speech:
		if !s.inSpeech {
			s.inSpeech = true
			s.segment = s.segment[:0]
		}
		s.segment = append(s.segment, frame...)
		s.silenceFrames = 0

		if len(s.segment) < s.samplesFor(s.cfg.MaxSegment) {
			return nil
		}
		head := make([]int16, len(s.segment))
		copy(head, s.segment)
		s.reset()
		s.skipping = true
		return head

	case s.skipping:
		s.silenceFrames++
		if time.Duration(s.silenceFrames)*frameDur >= s.cfg.TrailingSilence {
			s.reset()
		}
		return nil

	case s.inSpeech:
		s.segment = append(s.segment, frame...)
		s.silenceFrames++
		if time.Duration(s.silenceFrames)*frameDur < s.cfg.TrailingSilence {
			return nil
		}

		var done []int16
		if len(s.segment) >= s.samplesFor(s.cfg.MinSegment) {
			done = make([]int16, len(s.segment))
			copy(done, s.segment)
		}
		s.reset()
		return done
	}
	return nil
}

// Matches reports whether text contains the keyword or an alias.
func (s *Spotter) Matches(text string) bool {
	words := strings.Fields(normalize(text))
	for _, target := range s.targets {
		n := len(strings.Fields(target))
		for i := 0; i+n <= len(words); i++ {
			if s.similar(strings.Join(words[i:i+n], " "), target) {
				return true
			}
		}
	}
	return false
}

func (s *Spotter) similar(heard, target string) bool {
	if heard == target {
		return true
	}

	hp, hs := matchr.DoubleMetaphone(heard)
	tp, ts := matchr.DoubleMetaphone(target)
	if hp != "" && (hp == tp || (hs != "" && hs == ts)) {
		return true
	}

	return matchr.JaroWinkler(heard, target, false) >= s.threshold
}

// normalize lowercases text and keeps only letters and single spaces.
func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == ',':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var _ Detector = (*Spotter)(nil)
