package conversation

import (
	"log/slog"
	"sync"
)

// State is where the loop is in one exchange.
type State int

const (
	StateAwaitingWake State = iota
	StateCapturingPostWake
	StatePromptingForQuestion
	StateTranscribing
	StateClassifyingIntent
	StateAnswering
	StateRegistering
	StateReplying
	// StateInterrupted 播放被唤醒词打断, 正在等待新指令
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateAwaitingWake:
		return "AwaitingWake"
	case StateCapturingPostWake:
		return "CapturingPostWake"
	case StatePromptingForQuestion:
		return "PromptingForQuestion"
	case StateTranscribing:
		return "Transcribing"
	case StateClassifyingIntent:
		return "ClassifyingIntent"
	case StateAnswering:
		return "Answering"
	case StateRegistering:
		return "Registering"
	case StateReplying:
		return "Replying"
	case StateInterrupted:
		return "Interrupted"
	default:
		return "Unknown"
	}
}

// stateTracker records the current state and logs transitions. Only the
// loop goroutine writes it; State may be read from anywhere.
type stateTracker struct {
	mu      sync.Mutex
	current State
	history []State
	keep    bool
	log     *slog.Logger
}

func (t *stateTracker) set(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.current
	t.current = s
	if t.keep {
		t.history = append(t.history, s)
	}
	if old != s {
		t.log.Debug("state changed", "from", old, "to", s)
	}
}

func (t *stateTracker) get() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
