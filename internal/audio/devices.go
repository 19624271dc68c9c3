package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo describes one PortAudio device.
type DeviceInfo struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

// ListDevices 列出所有音频设备, 并标出默认输入/输出
func ListDevices(m *Manager) ([]DeviceInfo, error) {
	if m == nil {
		m = GetManager()
	}
	if err := m.Initialize(); err != nil {
		return nil, err
	}
	defer m.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}
	in, _ := portaudio.DefaultInputDevice()
	out, _ := portaudio.DefaultOutputDevice()

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		info := DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      in != nil && d.Name == in.Name,
			DefaultOutput:     out != nil && d.Name == out.Name,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		infos = append(infos, info)
	}
	return infos, nil
}
