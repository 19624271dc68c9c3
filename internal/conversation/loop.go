// Package conversation runs the assistant: wait for the wake word, work out
// what was asked, answer it, and go back to waiting.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jarvis/internal/asr"
	"jarvis/internal/audio"
	"jarvis/internal/capture"
	"jarvis/internal/intent"
	"jarvis/internal/llm"
	"jarvis/internal/speaker"
)

// 固定回复
const (
	promptSuffix          = ". Dígame"
	helpSuffix            = ". ¿En qué puedo ayudarle?"
	noQuestionReply       = "No he recibido ninguna pregunta, señor"
	repeatReply           = "Disculpe, no le he entendido bien. Por favor, repita"
	stillLostReply        = "Lo siento señor, sigo sin entenderle"
	notUnderstoodReply    = "Disculpe, no le he entendido"
	registerFailedReply   = "Disculpe señor, hubo un error al registrarle"
	noAnswerReply         = "Lo siento señor, no he podido obtener una respuesta"
	unknownUserReply      = "Disculpe, aún no me ha dicho su nombre. Puede decirme 'me llamo [su nombre]'"
	interruptFailedReply  = "Disculpe señor, hubo un error"
	defaultInterruptReply = "¿Señor?"
)

// Config tunes the loop. The capture policies are owned by the capture
// section of the config file and copied in.
type Config struct {
	FollowUp capture.Policy `yaml:"-"`
	// TranscribeAttempts is how many utterances are tried before giving up.
	TranscribeAttempts int     `yaml:"transcribe_attempts"`
	IdentifyThreshold  float64 `yaml:"identify_threshold"`
	MaxInterruptDepth  int     `yaml:"max_interrupt_depth"`
	InterruptPrompt    string  `yaml:"interrupt_prompt"`
	// RetryDelay is the pause after a failed turn before listening again.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// DefaultConfig returns the loop defaults.
func DefaultConfig() Config {
	return Config{
		FollowUp:           capture.FollowUpPolicy(),
		TranscribeAttempts: 2,
		IdentifyThreshold:  50,
		MaxInterruptDepth:  5,
		InterruptPrompt:    defaultInterruptReply,
		RetryDelay:         time.Second,
	}
}

// Validate checks the loop settings.
func (c Config) Validate() error {
	var errs []error
	if c.TranscribeAttempts < 1 {
		errs = append(errs, errors.New("transcribe_attempts must be at least 1"))
	}
	if c.IdentifyThreshold < 0 || c.IdentifyThreshold > 100 {
		errs = append(errs, errors.New("identify_threshold must be within 0-100"))
	}
	if c.MaxInterruptDepth < 1 {
		errs = append(errs, errors.New("max_interrupt_depth must be at least 1"))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, errors.New("retry_delay must not be negative"))
	}
	if err := c.FollowUp.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Components are the collaborators the loop drives. Verifier and
// Refresher are optional.
type Components struct {
	Listener    Listener
	Capturer    Capturer
	Transcriber Transcriber
	Identifier  Identifier
	Answerer    Answerer
	Classifier  IntentClassifier
	Speaker     Speaker
	Verifier    SpeechVerifier
	Refresher   Refresher
}

func (c Components) validate() error {
	var errs []error
	if c.Listener == nil {
		errs = append(errs, errors.New("listener is required"))
	}
	if c.Capturer == nil {
		errs = append(errs, errors.New("capturer is required"))
	}
	if c.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if c.Identifier == nil {
		errs = append(errs, errors.New("identifier is required"))
	}
	if c.Answerer == nil {
		errs = append(errs, errors.New("answerer is required"))
	}
	if c.Classifier == nil {
		errs = append(errs, errors.New("classifier is required"))
	}
	if c.Speaker == nil {
		errs = append(errs, errors.New("speaker is required"))
	}
	return errors.Join(errs...)
}

// Loop is the conversation state machine. It is driven by one goroutine.
type Loop struct {
	cfg     Config
	c       Components
	session Session
	states  stateTracker
	now     func() time.Time
	log     *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock used for greetings.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// New returns a Loop.
func New(cfg Config, c Components, opts ...Option) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("conversation: config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	if cfg.InterruptPrompt == "" {
		cfg.InterruptPrompt = defaultInterruptReply
	}
	l := &Loop{cfg: cfg, c: c, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	l.states.log = l.log
	return l, nil
}

// State returns the current state.
func (l *Loop) State() State {
	return l.states.get()
}

// Session returns a copy of the session memory.
func (l *Loop) Session() Session {
	return l.session
}

// Run handles exchanges until ctx is cancelled. Failed turns are logged
// and the loop goes back to waiting for the wake word.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("conversation loop started")
	defer l.log.Info("conversation loop stopped")

	for ctx.Err() == nil {
		err := l.Turn(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}
		l.log.Error("conversation turn failed", "err", err)
		select {
		case <-ctx.Done():
		case <-time.After(l.cfg.RetryDelay):
		}
	}
	l.states.set(StateAwaitingWake)
	return nil
}

// Turn runs one exchange, from waiting for the wake word to the last reply.
func (l *Loop) Turn(ctx context.Context) error {
	l.states.set(StateAwaitingWake)
	triggered, res, err := l.c.Listener.Listen(ctx)
	if err != nil {
		return fmt.Errorf("conversation: listen: %w", err)
	}
	if !triggered || res.Kind == capture.Cancelled {
		return nil
	}
	l.states.set(StateCapturingPostWake)

	utt := res.Utterance
	if res.Kind != capture.Captured {
		l.states.set(StatePromptingForQuestion)
		l.say(ctx, l.greeting()+promptSuffix, false)

		res, err = l.c.Capturer.Capture(ctx, l.cfg.FollowUp)
		if err != nil {
			return fmt.Errorf("conversation: capture question: %w", err)
		}
		switch res.Kind {
		case capture.Cancelled:
			return nil
		case capture.Empty:
			l.say(ctx, noQuestionReply, false)
			return nil
		}
		utt = res.Utterance
	}

	text, utt, err := l.transcribeWithRetry(ctx, utt)
	if err != nil || text == "" {
		return err
	}
	// 注册分支需要原始音频, 所以识别和分类之后才释放
	defer utt.Discard()

	if l.c.Refresher != nil {
		l.c.Refresher.Refresh()
	}
	name, confidence := l.c.Identifier.Identify(utt, l.cfg.IdentifyThreshold)
	l.session.CurrentUser = l.c.Identifier.Current()
	if name != "" {
		l.log.Info("speaker identified", "user", name, "confidence", confidence)
	} else {
		l.log.Info("speaker not identified", "confidence", confidence)
	}

	if l.handle(ctx, l.classify(text), text, utt, true) {
		l.handleInterruption(ctx)
	}
	return nil
}

// transcribeWithRetry returns the transcript and the utterance it came
// from. Utterances that produced nothing are discarded. An empty text with
// a nil error means the user gave up or was never understood.
func (l *Loop) transcribeWithRetry(ctx context.Context, utt *audio.Utterance) (string, *audio.Utterance, error) {
	for attempt := 1; ; attempt++ {
		if text := l.transcribe(ctx, utt); text != "" {
			return text, utt, nil
		}
		utt.Discard()
		if ctx.Err() != nil {
			return "", nil, nil
		}
		if attempt >= l.cfg.TranscribeAttempts {
			l.say(ctx, stillLostReply, false)
			return "", nil, nil
		}

		l.say(ctx, repeatReply, false)
		res, err := l.c.Capturer.Capture(ctx, l.cfg.FollowUp)
		if err != nil {
			return "", nil, fmt.Errorf("conversation: capture retry: %w", err)
		}
		if res.Kind != capture.Captured {
			l.log.Info("no answer to retry prompt, back to waiting")
			return "", nil, nil
		}
		utt = res.Utterance
	}
}

// transcribe returns the trimmed transcript, or "" when nothing usable was
// heard.
func (l *Loop) transcribe(ctx context.Context, utt *audio.Utterance) string {
	l.states.set(StateTranscribing)
	if l.c.Verifier != nil && !l.c.Verifier.HasSpeech(ctx, utt) {
		l.log.Info("utterance rejected by speech verifier", "duration", utt.Duration())
		return ""
	}

	text, err := l.c.Transcriber.Transcribe(ctx, utt)
	switch {
	case errors.Is(err, asr.ErrNoSpeech):
		l.log.Info("nothing understood")
		return ""
	case err != nil:
		l.log.Warn("transcription failed", "err", err)
		return ""
	}
	text = strings.TrimSpace(text)
	l.log.Info("transcript", "text", text)
	return text
}

func (l *Loop) classify(text string) intent.Intent {
	l.states.set(StateClassifyingIntent)
	in := l.c.Classifier.Classify(text)
	l.log.Info("intent classified", "intent", in.Kind)
	return in
}

// handle carries out one classified request. utt is the audio the text
// came from, used for registration. When lookahead is set a greeting is
// followed by one more turn. It reports whether an answer was interrupted
// by the wake word.
func (l *Loop) handle(ctx context.Context, in intent.Intent, text string, utt *audio.Utterance, lookahead bool) bool {
	switch in.Kind {
	case intent.RegisterUser:
		l.register(ctx, in.Name, utt)
		return false

	case intent.IdentityQuery:
		l.states.set(StateReplying)
		prefix := l.greeting()
		if user := l.c.Identifier.Current(); user != "" {
			l.say(ctx, fmt.Sprintf("%s. Su nombre es %s, señor", prefix, user), false)
		} else {
			l.say(ctx, prefix+". "+unknownUserReply, false)
		}
		return false

	case intent.Stop:
		l.states.set(StateReplying)
		l.say(ctx, in.Reply, false)
		return false

	case intent.Greeting:
		l.states.set(StateReplying)
		l.say(ctx, l.greeting()+helpSuffix, false)
		if !lookahead {
			return false
		}
		return l.followUp(ctx)

	case intent.Local:
		l.states.set(StateReplying)
		l.say(ctx, l.localReply(in), false)
		return false

	default:
		return l.answer(ctx, text)
	}
}

// followUp captures and resolves the one extra turn after a greeting.
func (l *Loop) followUp(ctx context.Context) bool {
	res, err := l.c.Capturer.Capture(ctx, l.cfg.FollowUp)
	if err != nil {
		l.log.Error("follow-up capture failed", "err", err)
		return false
	}
	if res.Kind != capture.Captured {
		return false
	}
	defer res.Utterance.Discard()

	text := l.transcribe(ctx, res.Utterance)
	if text == "" {
		return false
	}
	return l.handle(ctx, l.classify(text), text, res.Utterance, false)
}

func (l *Loop) register(ctx context.Context, name string, utt *audio.Utterance) {
	l.states.set(StateRegistering)
	if err := l.c.Identifier.Enroll(name, utt); err != nil {
		l.log.Error("registration failed", "user", name, "err", err)
		l.say(ctx, registerFailedReply, false)
		return
	}
	l.session.CurrentUser = name
	l.log.Info("user registered", "user", name)
	l.say(ctx, "Encantado de conocerle, "+l.greeting(), false)
}

// localReply joins the greeting to a local answer. Time and date read as
// one sentence ("Señor, son las 3 y 10").
func (l *Loop) localReply(in intent.Intent) string {
	prefix := l.greeting()
	switch in.Command {
	case intent.CommandTime, intent.CommandDate:
		return prefix + ", " + strings.ToLower(in.Reply)
	default:
		return prefix + ". " + in.Reply
	}
}

// answer asks the answer service and speaks the result interruptibly.
func (l *Loop) answer(ctx context.Context, question string) bool {
	l.states.set(StateAnswering)
	text, sources := l.c.Answerer.Answer(ctx, question)
	if text == "" {
		l.say(ctx, noAnswerReply, false)
		return false
	}
	if len(sources) > 0 {
		l.log.Info("answer sources", "sources", llm.FormatSources(sources))
	}

	out := l.say(ctx, l.greeting()+". "+text, true)
	return out == speaker.Interrupted
}

// handleInterruption takes a new request after the wake word cut an answer
// short. An answer given here may be interrupted again, up to
// MaxInterruptDepth times in a row.
func (l *Loop) handleInterruption(ctx context.Context) {
	for depth := 1; depth <= l.cfg.MaxInterruptDepth; depth++ {
		if ctx.Err() != nil {
			return
		}
		l.log.Info("answer interrupted, waiting for new instruction", "depth", depth)
		if !l.interruptOnce(ctx) {
			return
		}
	}
	l.log.Warn("interruption limit reached, back to waiting", "limit", l.cfg.MaxInterruptDepth)
}

// interruptOnce reports whether the request it handled was interrupted in
// turn.
func (l *Loop) interruptOnce(ctx context.Context) bool {
	l.states.set(StateInterrupted)
	l.say(ctx, l.cfg.InterruptPrompt, false)

	res, err := l.c.Capturer.Capture(ctx, l.cfg.FollowUp)
	if err != nil {
		l.log.Error("interruption capture failed", "err", err)
		l.say(ctx, interruptFailedReply, false)
		return false
	}
	switch res.Kind {
	case capture.Cancelled:
		return false
	case capture.Empty:
		l.say(ctx, intent.StopReply, false)
		return false
	}
	defer res.Utterance.Discard()

	text := l.transcribe(ctx, res.Utterance)
	if text == "" {
		l.say(ctx, notUnderstoodReply, false)
		return false
	}
	return l.handle(ctx, l.classify(text), text, res.Utterance, true)
}

func (l *Loop) greeting() string {
	return l.session.Greeting(l.now())
}

func (l *Loop) say(ctx context.Context, text string, interruptible bool) speaker.Outcome {
	return l.c.Speaker.Say(ctx, text, interruptible)
}
