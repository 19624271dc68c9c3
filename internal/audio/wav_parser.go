package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// wavChunk represents a generic WAV chunk header
type wavChunk struct {
	ID   [4]byte
	Size uint32
}

// fmtChunk represents the format chunk
type fmtChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// parseWAV walks the RIFF chunks itself instead of trusting the header
// sizes. Streaming TTS responses declare a data size of 0xFFFFFFFF (or
// nothing sensible), which go-wav rejects.
func parseWAV(content []byte) ([]float32, int, error) {
	if len(content) < 12 {
		return nil, 0, fmt.Errorf("file too small to be a valid WAV file")
	}

	reader := bytes.NewReader(content)

	var riffHeader struct {
		ChunkID   [4]byte
		ChunkSize uint32
		Format    [4]byte
	}
	if err := binary.Read(reader, binary.LittleEndian, &riffHeader); err != nil {
		return nil, 0, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riffHeader.ChunkID[:]) != "RIFF" {
		return nil, 0, fmt.Errorf("not a RIFF file: %q", string(riffHeader.ChunkID[:]))
	}
	if string(riffHeader.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a WAVE file: %q", string(riffHeader.Format[:]))
	}

	var format *fmtChunk
	var dataOffset int64
	var dataSize uint32

	for {
		var chunk wavChunk
		if err := binary.Read(reader, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, 0, fmt.Errorf("failed to read chunk header: %w", err)
		}

		chunkID := string(chunk.ID[:])
		switch chunkID {
		case "fmt ":
			data := make([]byte, chunk.Size)
			if _, err := io.ReadFull(reader, data); err != nil {
				return nil, 0, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			var err error
			if format, err = parseFmtChunk(data); err != nil {
				return nil, 0, fmt.Errorf("failed to parse fmt chunk: %w", err)
			}

		case "data":
			dataOffset, _ = reader.Seek(0, io.SeekCurrent)
			dataSize = chunk.Size
			if int64(dataSize) > int64(reader.Len()) {
				// 截断或流式头: 数据一直到文件末尾
				dataSize = uint32(reader.Len())
			}
			if _, err := reader.Seek(int64(dataSize), io.SeekCurrent); err != nil {
				return nil, 0, fmt.Errorf("failed to skip data chunk: %w", err)
			}

		default:
			if _, err := reader.Seek(int64(chunk.Size), io.SeekCurrent); err != nil {
				return nil, 0, fmt.Errorf("failed to skip chunk %s: %w", chunkID, err)
			}
		}
	}

	if format == nil {
		return nil, 0, fmt.Errorf("fmt chunk not found")
	}
	if dataOffset == 0 {
		return nil, 0, fmt.Errorf("data chunk not found")
	}
	if format.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", format.AudioFormat)
	}
	if format.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bits per sample: %d (only 16-bit is supported)", format.BitsPerSample)
	}

	return extractSamples(content[dataOffset:dataOffset+int64(dataSize)], format)
}

func parseFmtChunk(data []byte) (*fmtChunk, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("fmt chunk too small: %d bytes", len(data))
	}
	var f fmtChunk
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &f); err != nil {
		return nil, fmt.Errorf("failed to read fmt chunk: %w", err)
	}
	if f.NumChannels == 0 {
		return nil, fmt.Errorf("fmt chunk declares zero channels")
	}
	return &f, nil
}

// extractSamples downmixes interleaved 16-bit PCM to mono float32.
func extractSamples(data []byte, f *fmtChunk) ([]float32, int, error) {
	ch := int(f.NumChannels)
	frames := len(data) / (2 * ch)
	if frames <= 0 {
		return nil, 0, fmt.Errorf("no audio samples found")
	}

	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < ch; c++ {
			off := (i*ch + c) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(data[off:]))) / 32768.0
		}
		samples[i] = sum / float32(ch)
	}

	slog.Debug("parsed WAV", "channels", ch, "sample_rate", f.SampleRate, "samples", frames)
	return samples, int(f.SampleRate), nil
}
