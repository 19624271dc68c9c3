package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const channels = 1

// PortAudioDevice opens blocking PortAudio input streams on the default
// input device.
type PortAudioDevice struct {
	manager *Manager
}

// NewPortAudioDevice 创建默认输入设备
func NewPortAudioDevice(manager *Manager) *PortAudioDevice {
	if manager == nil {
		manager = GetManager()
	}
	return &PortAudioDevice{manager: manager}
}

// OpenInput opens and starts a stream with the given rate and frame length.
func (d *PortAudioDevice) OpenInput(cfg StreamConfig) (InputStream, error) {
	if cfg.SampleRate <= 0 || cfg.FrameLength <= 0 {
		return nil, fmt.Errorf("invalid stream config: rate=%d frame=%d", cfg.SampleRate, cfg.FrameLength)
	}

	release, err := d.manager.AcquireInput(cfg.Monitor)
	if err != nil {
		return nil, err
	}
	if err := d.manager.Initialize(); err != nil {
		release()
		return nil, err
	}

	in := &portAudioInput{
		manager: d.manager,
		release: release,
		buffer:  make([]int16, cfg.FrameLength),
	}

	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(cfg.SampleRate), cfg.FrameLength, in.buffer)
	if err != nil {
		in.teardown()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	in.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		in.stream = nil
		in.teardown()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}
	return in, nil
}

type portAudioInput struct {
	manager *Manager
	release func()
	stream  *portaudio.Stream
	buffer  []int16

	mu     sync.Mutex
	closed bool
}

func (i *portAudioInput) Read(frame []int16) error {
	if len(frame) != len(i.buffer) {
		panic(fmt.Sprintf("audio: frame length %d does not match stream frame length %d", len(frame), len(i.buffer)))
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrStreamClosed
	}

	// 溢出只意味着丢了几个样本, 继续读
	if err := i.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return fmt.Errorf("failed to read input stream: %w", err)
	}
	copy(frame, i.buffer)
	return nil
}

func (i *portAudioInput) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true

	var errs []error
	if i.stream != nil {
		if err := i.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop input stream: %w", err))
		}
		if err := i.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close input stream: %w", err))
		}
	}
	if err := i.teardown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (i *portAudioInput) teardown() error {
	i.release()
	return i.manager.Terminate()
}

var _ Device = (*PortAudioDevice)(nil)
