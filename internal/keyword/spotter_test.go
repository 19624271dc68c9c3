package keyword

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/audio"
	"jarvis/internal/audio/audiotest"
)

type fakeSTT struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []int
}

func (f *fakeSTT) Transcribe(_ context.Context, utt *audio.Utterance) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, len(utt.Samples))
	return f.text, f.err
}

func newSpotter(t *testing.T, stt Transcriber) *Spotter {
	t.Helper()
	s, err := NewSpotter(DefaultConfig(), stt, nil)
	require.NoError(t, err)
	return s
}

func TestSpotterMatches(t *testing.T) {
	s := newSpotter(t, &fakeSTT{})

	tests := []struct {
		text string
		want bool
	}{
		{"Jarvis", true},
		{"Oye, JARVIS.", true},
		{"jarvi", true},
		{"harvis qué hora es", true},
		{"hola", false},
		{"", false},
		{"buenos días", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Matches(tt.text), "text=%q", tt.text)
	}
}

func TestSpotterProcessTranscribesSegments(t *testing.T) {
	ctx := context.Background()
	stt := &fakeSTT{text: "Jarvis"}
	s := newSpotter(t, stt)

	speech := make([]int16, 512)
	audiotest.Fill(speech, audiotest.SpeechLevel)
	silence := make([]int16, 512)

	for i := 0; i < 6; i++ {
		hit, err := s.Process(ctx, speech)
		require.NoError(t, err)
		assert.False(t, hit)
	}

	var fired bool
	for i := 0; i < 10; i++ {
		hit, err := s.Process(ctx, silence)
		require.NoError(t, err)
		fired = fired || hit
	}

	assert.True(t, fired)
	require.Len(t, stt.calls, 1)
	assert.Equal(t, 16*512, stt.calls[0])
}

func TestSpotterIgnoresClicks(t *testing.T) {
	ctx := context.Background()
	stt := &fakeSTT{text: "Jarvis"}
	s := newSpotter(t, stt)

	speech := make([]int16, 512)
	audiotest.Fill(speech, audiotest.SpeechLevel)
	silence := make([]int16, 512)

	// one loud frame is shorter than MinSegment even with its tail
	_, _ = s.Process(ctx, speech)
	for i := 0; i < 10; i++ {
		_, _ = s.Process(ctx, silence)
	}
	assert.Empty(t, stt.calls)
}

func TestSpotterLongBurstMatchesHead(t *testing.T) {
	ctx := context.Background()
	stt := &fakeSTT{text: "Jarvis, qué tiempo hace"}
	s := newSpotter(t, stt)

	speech := make([]int16, 512)
	audiotest.Fill(speech, audiotest.SpeechLevel)
	silence := make([]int16, 512)

	// 2 s at 512 samples per frame is 62.5 frames; the head goes out on
	// frame 63 while the speaker is still talking
	firedAt := -1
	for i := 1; i <= 150; i++ {
		hit, err := s.Process(ctx, speech)
		require.NoError(t, err)
		if hit && firedAt < 0 {
			firedAt = i
		}
	}
	assert.Equal(t, 63, firedAt)
	require.Len(t, stt.calls, 1, "the rest of the burst is skipped")
	assert.Equal(t, 63*512, stt.calls[0])

	// after a pause a new burst is heard again
	for i := 0; i < 10; i++ {
		_, _ = s.Process(ctx, silence)
	}
	for i := 0; i < 6; i++ {
		_, _ = s.Process(ctx, speech)
	}
	for i := 0; i < 10; i++ {
		_, _ = s.Process(ctx, silence)
	}
	assert.Len(t, stt.calls, 2)
}

func TestSpotterResetClearsSkipping(t *testing.T) {
	ctx := context.Background()
	stt := &fakeSTT{text: "hola"}
	s := newSpotter(t, stt)

	speech := make([]int16, 512)
	audiotest.Fill(speech, audiotest.SpeechLevel)
	silence := make([]int16, 512)

	for i := 0; i < 70; i++ {
		_, _ = s.Process(ctx, speech)
	}
	require.Len(t, stt.calls, 1)

	s.Reset()
	for i := 0; i < 6; i++ {
		_, _ = s.Process(ctx, speech)
	}
	for i := 0; i < 10; i++ {
		_, _ = s.Process(ctx, silence)
	}
	assert.Len(t, stt.calls, 2)
}

// blockingSTT waits for the request context, like a slow network call.
type blockingSTT struct{}

func (blockingSTT) Transcribe(ctx context.Context, _ *audio.Utterance) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSpotterProcessStopsWithContext(t *testing.T) {
	s := newSpotter(t, blockingSTT{})

	speech := make([]int16, 512)
	audiotest.Fill(speech, audiotest.SpeechLevel)
	silence := make([]int16, 512)

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, _ = s.Process(ctx, speech)
	}
	// trailing silence: the frame that closes the segment starts the request
	for i := 0; i < 9; i++ {
		_, _ = s.Process(ctx, silence)
	}

	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	hit, err := s.Process(cctx, silence)

	assert.False(t, hit)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "Timeout is 5s; ctx must win")
}

func TestSpotterTranscribeError(t *testing.T) {
	ctx := context.Background()
	stt := &fakeSTT{err: errors.New("offline")}
	s := newSpotter(t, stt)

	speech := make([]int16, 512)
	audiotest.Fill(speech, audiotest.SpeechLevel)
	silence := make([]int16, 512)

	for i := 0; i < 6; i++ {
		_, _ = s.Process(ctx, speech)
	}
	var lastErr error
	for i := 0; i < 10; i++ {
		if _, err := s.Process(ctx, silence); err != nil {
			lastErr = err
		}
	}
	assert.Error(t, lastErr)
}

func TestSpotterFrameLengthMismatchPanics(t *testing.T) {
	s := newSpotter(t, &fakeSTT{})
	assert.Panics(t, func() { _, _ = s.Process(context.Background(), make([]int16, 480)) })
}

func TestNewSpotterValidation(t *testing.T) {
	_, err := NewSpotter(DefaultConfig(), nil, nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Keyword = "  "
	_, err = NewSpotter(cfg, &fakeSTT{}, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Sensitivity = 1.5
	_, err = NewSpotter(cfg, &fakeSTT{}, nil)
	assert.Error(t, err)
}
