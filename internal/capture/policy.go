package capture

import (
	"errors"
	"fmt"
	"time"
)

// Policy decides where an utterance ends.
type Policy struct {
	Name string `yaml:"-"`
	// SilenceDuration of non-speech after the last speech frame ends the
	// utterance.
	SilenceDuration time.Duration `yaml:"silence_duration"`
	// MaxTotalTime caps the whole capture, speech or not.
	MaxTotalTime time.Duration `yaml:"max_total_time"`
	// MinSpeechDuration is the shortest speech span that counts as an
	// utterance. Shorter bursts are dropped as noise.
	MinSpeechDuration time.Duration `yaml:"min_speech_duration"`
	// MaxOnsetWait is how long to wait for the first speech frame. Zero
	// means MaxTotalTime.
	MaxOnsetWait time.Duration `yaml:"max_onset_wait"`
}

// PostWakePolicy is used right after the wake word: the user is usually
// already talking, so onset patience is short.
func PostWakePolicy() Policy {
	return Policy{
		Name:            "post_wake",
		SilenceDuration: 2 * time.Second,
		MaxTotalTime:    10 * time.Second,
		MaxOnsetWait:    5 * time.Second,
	}
}

// FollowUpPolicy is used when the assistant has asked for something and
// waits for the answer.
func FollowUpPolicy() Policy {
	return Policy{
		Name:              "follow_up",
		SilenceDuration:   2 * time.Second,
		MaxTotalTime:      15 * time.Second,
		MinSpeechDuration: 300 * time.Millisecond,
	}
}

func (p Policy) onsetWait() time.Duration {
	if p.MaxOnsetWait <= 0 || p.MaxOnsetWait > p.MaxTotalTime {
		return p.MaxTotalTime
	}
	return p.MaxOnsetWait
}

// Validate checks that the policy can terminate.
func (p Policy) Validate() error {
	var errs []error
	if p.SilenceDuration <= 0 {
		errs = append(errs, fmt.Errorf("silence_duration must be positive"))
	}
	if p.MaxTotalTime <= 0 {
		errs = append(errs, fmt.Errorf("max_total_time must be positive"))
	}
	if p.MinSpeechDuration < 0 {
		errs = append(errs, fmt.Errorf("min_speech_duration must not be negative"))
	}
	if p.MaxOnsetWait < 0 {
		errs = append(errs, fmt.Errorf("max_onset_wait must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("capture policy %q: %w", p.Name, err)
	}
	return nil
}
