package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/tosone/minimp3"
	"github.com/youpy/go-wav"
)

// Decode 解码音频数据 (WAV / MP3)，自动检测格式, 输出单声道 Clip
func Decode(audioData []byte) (Clip, error) {
	var (
		samples []float32
		rate    int
		err     error
	)

	switch detectFormat(audioData) {
	case "wav":
		// 先尝试健壮的 WAV 解析器
		samples, rate, err = parseWAV(audioData)
		if err != nil {
			slog.Debug("robust WAV parser failed, falling back to go-wav", "err", err)
			samples, rate, err = decodeWAV(audioData)
		}
	case "mp3":
		samples, rate, err = decodeMP3(audioData)
	default:
		samples, rate, err = parseWAV(audioData)
		if err != nil {
			samples, rate, err = decodeMP3(audioData)
		}
	}
	if err != nil {
		return Clip{}, err
	}
	return Clip{Samples: samples, SampleRate: rate}, nil
}

// DecodeFile 解码音频文件
func DecodeFile(filename string) (Clip, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to read file: %w", err)
	}
	return Decode(data)
}

// detectFormat 检测音频格式
func detectFormat(data []byte) string {
	if len(data) >= 4 && bytes.Equal(data[:4], []byte("RIFF")) {
		return "wav"
	}
	if len(data) >= 3 && bytes.Equal(data[:3], []byte("ID3")) {
		return "mp3"
	}
	if len(data) >= 2 && data[0] == 0xFF && (data[1]&0xE0) == 0xE0 {
		return "mp3"
	}
	return "unknown"
}

// decodeWAV 使用 go-wav 解码 WAV
func decodeWAV(audioData []byte) ([]float32, int, error) {
	reader := wav.NewReader(bytes.NewReader(audioData))

	format, err := reader.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV format: %w", err)
	}

	var scale float32
	switch format.BitsPerSample {
	case 8:
		scale = 128.0
	case 24:
		scale = 8388608.0
	case 32:
		scale = 2147483648.0
	default:
		scale = 32768.0
	}

	var samples []float32
	for {
		batch, err := reader.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read WAV samples: %w", err)
		}

		for _, sample := range batch {
			v := float32(reader.IntValue(sample, 0)) / scale
			if format.NumChannels == 2 {
				v = (v + float32(reader.IntValue(sample, 1))/scale) / 2.0
			}
			samples = append(samples, clampUnit(v))
		}
	}

	return samples, int(format.SampleRate), nil
}

// decodeMP3 使用 minimp3 解码 MP3
func decodeMP3(audioData []byte) ([]float32, int, error) {
	decoder, pcm, err := minimp3.DecodeFull(audioData)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}
	defer decoder.Close()

	ch := decoder.Channels
	if ch <= 0 {
		return nil, 0, fmt.Errorf("MP3 stream declares %d channels", ch)
	}

	frames := len(pcm) / (2 * ch)
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < ch; c++ {
			off := (i*ch + c) * 2
			raw := int16(pcm[off]) | int16(pcm[off+1])<<8
			sum += float32(raw) / 32768.0
		}
		samples[i] = clampUnit(sum / float32(ch))
	}

	slog.Debug("decoded MP3", "channels", ch, "sample_rate", decoder.SampleRate, "samples", frames)
	return samples, decoder.SampleRate, nil
}

func clampUnit(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
