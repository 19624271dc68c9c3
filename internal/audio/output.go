package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// PortAudioSink 音频输出: 每个 clip 打开一个回调输出流, 播放结束或被打断后关闭.
type PortAudioSink struct {
	manager    *Manager
	sampleRate int

	mu          sync.Mutex
	stream      *portaudio.Stream
	release     func()
	samples     []float32
	position    int
	finished    bool
	interrupted bool
}

// NewPortAudioSink 创建音频输出, 所有 clip 都重采样到 sampleRate 播放
func NewPortAudioSink(manager *Manager, sampleRate int) *PortAudioSink {
	if manager == nil {
		manager = GetManager()
	}
	return &PortAudioSink{
		manager:    manager,
		sampleRate: sampleRate,
		finished:   true,
	}
}

// audioCallback 音频回调函数
func (s *PortAudioSink) audioCallback(out []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 如果被打断，立即填充静音
	if s.interrupted {
		for i := range out {
			out[i] = 0.0
		}
		s.finished = true
		return
	}

	for i := range out {
		if s.position < len(s.samples) {
			out[i] = s.samples[s.position]
			s.position++
		} else {
			out[i] = 0.0
			s.finished = true
		}
	}
}

// Play starts playing clip and returns immediately.
func (s *PortAudioSink) Play(clip Clip) error {
	if len(clip.Samples) == 0 {
		return fmt.Errorf("no audio samples to play")
	}
	s.Stop()

	samples, err := Resample(clip.Samples, clip.SampleRate, s.sampleRate)
	if err != nil {
		return fmt.Errorf("failed to resample audio: %w", err)
	}

	release, err := s.manager.AcquireOutput()
	if err != nil {
		return err
	}
	if err := s.manager.Initialize(); err != nil {
		release()
		return err
	}

	s.mu.Lock()
	s.samples = samples
	s.position = 0
	s.finished = false
	s.interrupted = false
	s.mu.Unlock()

	stream, err := portaudio.OpenDefaultStream(0, channels, float64(s.sampleRate), framesPerBuffer, s.audioCallback)
	if err != nil {
		s.markDone()
		release()
		_ = s.manager.Terminate()
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		s.markDone()
		_ = stream.Close()
		release()
		_ = s.manager.Terminate()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	s.mu.Lock()
	s.stream = stream
	s.release = release
	s.mu.Unlock()

	slog.Debug("playback started", "samples", len(samples), "sample_rate", s.sampleRate)
	return nil
}

// Playing reports whether the clip is still playing. Once the callback has
// drained the clip the stream is closed here.
func (s *PortAudioSink) Playing() bool {
	s.mu.Lock()
	done := s.finished || s.interrupted
	s.mu.Unlock()

	if done {
		if err := s.closeStream(); err != nil {
			slog.Warn("failed to close output stream", "err", err)
		}
	}
	return !done
}

// Stop 停止当前播放
func (s *PortAudioSink) Stop() {
	s.markDone()
	if err := s.closeStream(); err != nil {
		slog.Warn("failed to close output stream", "err", err)
	}
}

func (s *PortAudioSink) markDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupted = true
	s.finished = true
}

// closeStream must not hold mu while stopping: Stop waits for the callback,
// which takes mu.
func (s *PortAudioSink) closeStream() error {
	s.mu.Lock()
	stream, release := s.stream, s.release
	s.stream, s.release = nil, nil
	s.mu.Unlock()

	if stream == nil {
		return nil
	}

	var errs []error
	if err := stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop audio stream: %w", err))
	}
	if err := stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audio stream: %w", err))
	}
	release()
	if err := s.manager.Terminate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var _ Sink = (*PortAudioSink)(nil)
