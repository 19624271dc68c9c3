package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	audioManager *Manager
	managerOnce  sync.Once
)

// Manager 管理 PortAudio 的初始化/终止, 并约束同时打开的流:
// 任意时刻最多一个输入流和一个输出流, 且两者不能同时打开,
// 唯一的例外是播放期间的唤醒词监听流 (Monitor).
type Manager struct {
	mu          sync.Mutex
	initialized bool
	refCount    int

	inputs   int
	monitors int
	outputs  int

	initialize func() error
	terminate  func() error
}

// GetManager 获取全局音频管理器实例
func GetManager() *Manager {
	managerOnce.Do(func() {
		audioManager = &Manager{
			initialize: portaudio.Initialize,
			terminate:  portaudio.Terminate,
		}
	})
	return audioManager
}

// NewManager returns a manager that only does stream accounting. Used by
// in-memory devices.
func NewManager() *Manager {
	return &Manager{}
}

// Initialize 初始化音频系统
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		if m.initialize != nil {
			if err := m.initialize(); err != nil {
				return fmt.Errorf("failed to initialize PortAudio: %w", err)
			}
		}
		m.initialized = true
	}

	m.refCount++
	return nil
}

// Terminate 终止音频系统
func (m *Manager) Terminate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refCount > 0 {
		m.refCount--
	}

	if m.refCount == 0 && m.initialized {
		if m.terminate != nil {
			if err := m.terminate(); err != nil {
				return fmt.Errorf("failed to terminate PortAudio: %w", err)
			}
		}
		m.initialized = false
	}

	return nil
}

// IsInitialized 检查音频系统是否已初始化
func (m *Manager) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// AcquireInput reserves the input side of the device. The returned release
// func is idempotent.
func (m *Manager) AcquireInput(monitor bool) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inputs+m.monitors > 0 {
		return nil, fmt.Errorf("%w: an input stream is already open", ErrDeviceBusy)
	}
	if m.outputs > 0 && !monitor {
		return nil, fmt.Errorf("%w: cannot capture while playing", ErrDeviceBusy)
	}

	if monitor {
		m.monitors++
	} else {
		m.inputs++
	}
	slog.Debug("input stream acquired", "monitor", monitor)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if monitor {
				m.monitors--
			} else {
				m.inputs--
			}
		})
	}, nil
}

// AcquireOutput reserves the output side of the device. Only a monitor
// input may be open at the same time.
func (m *Manager) AcquireOutput() (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.outputs > 0 {
		return nil, fmt.Errorf("%w: an output stream is already open", ErrDeviceBusy)
	}
	if m.inputs > 0 {
		return nil, fmt.Errorf("%w: cannot play while capturing", ErrDeviceBusy)
	}
	m.outputs++

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.outputs--
		})
	}, nil
}

// StreamCounts reports how many streams are open right now.
type StreamCounts struct {
	Inputs   int
	Monitors int
	Outputs  int
}

// Open returns the current stream counts.
func (m *Manager) Open() StreamCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return StreamCounts{Inputs: m.inputs, Monitors: m.monitors, Outputs: m.outputs}
}
