// Package audiotest provides in-memory audio devices for tests.
package audiotest

import (
	"sync"
	"time"

	"jarvis/internal/audio"
)

// SpeechLevel is the amplitude written into speech frames.
const SpeechLevel = 4000

// FrameFunc fills frame number n of a stream opened with cfg.
type FrameFunc func(cfg audio.StreamConfig, n int, frame []int16)

// Sequence returns a FrameFunc that emits a speech frame wherever
// speech[n] is true and silence everywhere else, including past the end.
func Sequence(speech ...bool) FrameFunc {
	return func(_ audio.StreamConfig, n int, frame []int16) {
		if n < len(speech) && speech[n] {
			Fill(frame, SpeechLevel)
			return
		}
		Fill(frame, 0)
	}
}

// Speech returns n true values followed by silence frames.
func Speech(speechFrames, silenceFrames int) []bool {
	out := make([]bool, speechFrames+silenceFrames)
	for i := 0; i < speechFrames; i++ {
		out[i] = true
	}
	return out
}

// Fill writes a square wave of the given amplitude.
func Fill(frame []int16, level int16) {
	for i := range frame {
		if i%2 == 0 {
			frame[i] = level
		} else {
			frame[i] = -level
		}
	}
}

// Device is a scripted audio.Device that shares the stream policy of a
// real device through its Manager.
type Device struct {
	Manager *audio.Manager
	Frames  FrameFunc
	// Pace makes every Read block for this long.
	Pace time.Duration
	// OpenErr is returned by OpenInput when set.
	OpenErr error
	// ReadErr is returned by Read once ReadErrAfter frames were read.
	ReadErr      error
	ReadErrAfter int

	mu     sync.Mutex
	opened []audio.StreamConfig
	closed int
	reads  int
}

// NewDevice returns a device emitting frames from fn.
func NewDevice(manager *audio.Manager, fn FrameFunc) *Device {
	if manager == nil {
		manager = audio.NewManager()
	}
	return &Device{Manager: manager, Frames: fn}
}

// OpenInput implements audio.Device.
func (d *Device) OpenInput(cfg audio.StreamConfig) (audio.InputStream, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	release, err := d.Manager.AcquireInput(cfg.Monitor)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.opened = append(d.opened, cfg)
	d.mu.Unlock()

	return &stream{device: d, cfg: cfg, release: release}, nil
}

// Opened returns the configs of every stream opened so far.
func (d *Device) Opened() []audio.StreamConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]audio.StreamConfig, len(d.opened))
	copy(out, d.opened)
	return out
}

// Live returns how many streams are open and not yet closed.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opened) - d.closed
}

// Reads returns the total number of frames read across all streams.
func (d *Device) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

type stream struct {
	device  *Device
	cfg     audio.StreamConfig
	release func()

	mu     sync.Mutex
	n      int
	closed bool
}

func (s *stream) Read(frame []int16) error {
	if len(frame) != s.cfg.FrameLength {
		panic("audiotest: frame length mismatch")
	}
	if s.device.Pace > 0 {
		time.Sleep(s.device.Pace)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audio.ErrStreamClosed
	}

	d := s.device
	d.mu.Lock()
	failed := d.ReadErr != nil && d.reads >= d.ReadErrAfter
	if !failed {
		d.reads++
	}
	d.mu.Unlock()
	if failed {
		return d.ReadErr
	}

	if d.Frames != nil {
		d.Frames(s.cfg, s.n, frame)
	} else {
		Fill(frame, 0)
	}
	s.n++
	return nil
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.release()

	s.device.mu.Lock()
	s.device.closed++
	s.device.mu.Unlock()
	return nil
}

// Sink is an audio.Sink whose clips play for their real duration, or for
// Duration when set.
type Sink struct {
	Manager  *audio.Manager
	Duration time.Duration
	PlayErr  error

	mu      sync.Mutex
	played  []audio.Clip
	stops   int
	until   time.Time
	release func()
}

// NewSink returns a sink sharing the stream policy of manager.
func NewSink(manager *audio.Manager) *Sink {
	if manager == nil {
		manager = audio.NewManager()
	}
	return &Sink{Manager: manager}
}

// Play implements audio.Sink.
func (s *Sink) Play(clip audio.Clip) error {
	if s.PlayErr != nil {
		return s.PlayErr
	}
	s.Stop()

	release, err := s.Manager.AcquireOutput()
	if err != nil {
		return err
	}

	d := clip.Duration()
	if s.Duration > 0 {
		d = s.Duration
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, clip)
	s.until = time.Now().Add(d)
	s.release = release
	return nil
}

// Playing implements audio.Sink.
func (s *Sink) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.release == nil {
		return false
	}
	if time.Now().Before(s.until) {
		return true
	}
	s.release()
	s.release = nil
	return false
}

// Stop implements audio.Sink.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.release != nil {
		s.release()
		s.release = nil
		s.stops++
	}
}

// Played returns every clip handed to Play.
func (s *Sink) Played() []audio.Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.Clip, len(s.played))
	copy(out, s.played)
	return out
}

// Stops returns how many times an active clip was stopped early.
func (s *Sink) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

var (
	_ audio.Device = (*Device)(nil)
	_ audio.Sink   = (*Sink)(nil)
)
