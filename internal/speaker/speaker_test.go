package speaker

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
	"jarvis/internal/keyword"
	"jarvis/internal/keyword/mock"
)

type fakeSynth struct {
	payload []byte
	err     error
	texts   []string
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.texts = append(f.texts, text)
	return f.payload, f.err
}

func wavPayload(t *testing.T) []byte {
	t.Helper()
	data, err := audio.EncodeWAV(make([]int16, 1600), 16000)
	require.NoError(t, err)
	return data
}

type rig struct {
	manager  *audio.Manager
	device   *audiotest.Device
	sink     *audiotest.Sink
	detector *mock.Detector
	speaker  *Speaker
}

func newRig(t *testing.T, playFor time.Duration, triggerAt int) *rig {
	t.Helper()
	m := audio.NewManager()
	r := &rig{
		manager:  m,
		device:   audiotest.NewDevice(m, audiotest.Sequence()),
		sink:     audiotest.NewSink(m),
		detector: mock.New(triggerAt),
	}
	r.device.Pace = 5 * time.Millisecond
	r.sink.Duration = playFor

	cfg := DefaultConfig()
	cfg.TickInterval = 20 * time.Millisecond
	r.speaker = New(cfg, r.sink, &fakeSynth{payload: wavPayload(t)}, r.device, r.detector, nil)
	return r
}

func (r *rig) assertNoLeaks(t *testing.T) {
	t.Helper()
	assert.Zero(t, r.device.Live(), "monitor stream left open")
	assert.Equal(t, audio.StreamCounts{}, r.manager.Open())
}

func TestSpeakNotInterruptibleNeverMonitors(t *testing.T) {
	r := newRig(t, 100*time.Millisecond, 1)

	out := r.speaker.Speak(context.Background(), wavPayload(t), false)

	assert.Equal(t, Completed, out)
	assert.Empty(t, r.device.Opened(), "no monitor stream for non-interruptible speech")
	assert.Zero(t, r.detector.Calls())
	assert.Len(t, r.sink.Played(), 1)
	r.assertNoLeaks(t)
}

func TestSpeakInterruptibleCompletes(t *testing.T) {
	r := newRig(t, 150*time.Millisecond, 0)

	out := r.speaker.Speak(context.Background(), wavPayload(t), true)

	assert.Equal(t, Completed, out)
	opened := r.device.Opened()
	require.Len(t, opened, 1)
	assert.True(t, opened[0].Monitor)
	assert.Equal(t, 512, opened[0].FrameLength)
	assert.Positive(t, r.detector.Calls())
	assert.Zero(t, r.sink.Stops())
	r.assertNoLeaks(t)
}

func TestSpeakInterruptedByWakeWord(t *testing.T) {
	r := newRig(t, 10*time.Second, 4)

	start := time.Now()
	out := r.speaker.Speak(context.Background(), wavPayload(t), true)
	elapsed := time.Since(start)

	assert.Equal(t, Interrupted, out)
	assert.Equal(t, 1, r.sink.Stops())
	// 4 monitor frames at 5ms plus at most one 20ms tick, with slack for
	// slow machines.
	assert.Less(t, elapsed, time.Second)
	r.assertNoLeaks(t)
}

func TestSpeakSinkFailure(t *testing.T) {
	r := newRig(t, time.Second, 1)
	r.sink.PlayErr = errors.New("no output device")

	out := r.speaker.Speak(context.Background(), wavPayload(t), true)

	assert.Equal(t, Completed, out)
	assert.Empty(t, r.device.Opened())
	r.assertNoLeaks(t)
}

func TestSpeakUndecodablePayload(t *testing.T) {
	r := newRig(t, time.Second, 1)

	out := r.speaker.Speak(context.Background(), []byte("not audio at all"), true)

	assert.Equal(t, Completed, out)
	assert.Empty(t, r.sink.Played())
	r.assertNoLeaks(t)
}

func TestSpeakMonitorOpenFailureStillPlays(t *testing.T) {
	r := newRig(t, 100*time.Millisecond, 1)
	r.device.OpenErr = errors.New("mic busy")

	out := r.speaker.Speak(context.Background(), wavPayload(t), true)

	assert.Equal(t, Completed, out)
	assert.Len(t, r.sink.Played(), 1)
	r.assertNoLeaks(t)
}

func TestSpeakContextCancelled(t *testing.T) {
	r := newRig(t, 10*time.Second, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	out := r.speaker.Speak(ctx, wavPayload(t), true)

	assert.Equal(t, Completed, out)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, r.sink.Stops())
	r.assertNoLeaks(t)
}

func TestSaySynthesisFailure(t *testing.T) {
	r := newRig(t, time.Second, 1)
	synth := &fakeSynth{err: errors.New("quota")}
	r.speaker.synth = synth

	out := r.speaker.Say(context.Background(), "hola", true)

	assert.Equal(t, Completed, out)
	assert.Equal(t, []string{"hola"}, synth.texts)
	assert.Empty(t, r.sink.Played())
}

func TestAcknowledgeIsNotInterruptible(t *testing.T) {
	r := newRig(t, 30*time.Millisecond, 1)
	synth := &fakeSynth{payload: wavPayload(t)}
	r.speaker.synth = synth

	r.speaker.Acknowledge(context.Background())

	assert.Equal(t, []string{"¿Señor?"}, synth.texts)
	assert.Empty(t, r.device.Opened())
}

// slowSTT answers only when its request is cancelled.
type slowSTT struct{}

func (slowSTT) Transcribe(ctx context.Context, _ *audio.Utterance) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSpeakDoesNotWaitForKeywordTranscription(t *testing.T) {
	m := audio.NewManager()
	device := audiotest.NewDevice(m, audiotest.Sequence(audiotest.Speech(12, 0)...))
	device.Pace = 5 * time.Millisecond
	sink := audiotest.NewSink(m)
	sink.Duration = 300 * time.Millisecond

	spotter, err := keyword.NewSpotter(keyword.DefaultConfig(), slowSTT{}, nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.TickInterval = 20 * time.Millisecond
	spk := New(cfg, sink, &fakeSynth{payload: wavPayload(t)}, device, spotter, nil)

	// 12 loud frames and their trailing silence close a segment after
	// ~110ms; its transcription is still pending when the clip drains.
	start := time.Now()
	out := spk.Speak(context.Background(), wavPayload(t), true)
	elapsed := time.Since(start)

	assert.Equal(t, Completed, out)
	assert.Less(t, elapsed, sink.Duration+500*time.Millisecond, "keyword timeout is %v", keyword.DefaultConfig().Timeout)
	assert.Zero(t, device.Live(), "monitor stream left open")
	assert.Equal(t, audio.StreamCounts{}, m.Open())
}

// drainSink reports the clip as finished on the first poll and then lets
// lateDetector fire.
type drainSink struct {
	*audiotest.Sink
	once    sync.Once
	drained chan struct{}
}

func (s *drainSink) Playing() bool {
	s.Sink.Stop()
	s.once.Do(func() { close(s.drained) })
	return false
}

type lateDetector struct {
	*mock.Detector
	drained <-chan struct{}
}

func (d *lateDetector) Process(ctx context.Context, frame []int16) (bool, error) {
	select {
	case <-d.drained:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func TestSpeakTriggerAfterDrainIsCompleted(t *testing.T) {
	m := audio.NewManager()
	device := audiotest.NewDevice(m, audiotest.Sequence())
	sink := &drainSink{Sink: audiotest.NewSink(m), drained: make(chan struct{})}
	detector := &lateDetector{Detector: mock.New(0), drained: sink.drained}

	cfg := DefaultConfig()
	cfg.TickInterval = 20 * time.Millisecond
	spk := New(cfg, sink, &fakeSynth{payload: wavPayload(t)}, device, detector, nil)

	out := spk.Speak(context.Background(), wavPayload(t), true)

	assert.Equal(t, Completed, out)
	assert.Zero(t, device.Live())
}
