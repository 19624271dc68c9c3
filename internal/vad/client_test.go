package vad

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/audio"
	"jarvis/internal/audio/audiotest"
)

func TestEnergyClassifier(t *testing.T) {
	c, err := NewEnergyClassifier(1)
	require.NoError(t, err)

	silence := make([]int16, 480)
	speech := make([]int16, 480)
	audiotest.Fill(speech, audiotest.SpeechLevel)

	got, err := c.IsSpeech(silence, 16000)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = c.IsSpeech(speech, 16000)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEnergyClassifierAggressiveness(t *testing.T) {
	_, err := NewEnergyClassifier(4)
	assert.Error(t, err)
	_, err = NewEnergyClassifier(-1)
	assert.Error(t, err)

	lenient, _ := NewEnergyClassifier(0)
	strict, _ := NewEnergyClassifier(3)
	assert.Less(t, lenient.Threshold(), strict.Threshold())
}

func TestValidFrame(t *testing.T) {
	tests := []struct {
		n, rate int
		ok      bool
	}{
		{480, 16000, true},
		{320, 16000, true},
		{160, 16000, true},
		{512, 16000, false},
		{480, 44100, false},
		{1440, 48000, true},
	}
	for _, tt := range tests {
		err := ValidFrame(tt.n, tt.rate)
		if tt.ok {
			assert.NoError(t, err, "n=%d rate=%d", tt.n, tt.rate)
		} else {
			assert.Error(t, err, "n=%d rate=%d", tt.n, tt.rate)
		}
	}
}

func newSileroServer(t *testing.T, segments int, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", Timestamp: "now"})
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(InfoResponse{ModelName: "silero_vad", SampleRate: 16000, WindowSizeMs: 32})
	})
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("audio_file")
		assert.NoError(t, err)

		resp := DetectResponse{Status: "success"}
		if status != http.StatusOK {
			resp.Status = "error"
			resp.Message = "boom"
		}
		for i := 0; i < segments; i++ {
			resp.SpeechSegments = append(resp.SpeechSegments, SpeechSegment{Start: float64(i), End: float64(i) + 0.5, Duration: 0.5})
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientEndpoints(t *testing.T) {
	srv := newSileroServer(t, 2, http.StatusOK)
	client := NewClient(srv.URL, 0)
	ctx := context.Background()

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)

	info, err := client.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "silero_vad", info.ModelName)

	wav, err := audio.EncodeWAV(make([]int16, 1600), 16000)
	require.NoError(t, err)

	has, err := client.HasSpeech(ctx, wav, &DetectRequest{Threshold: 0.3})
	require.NoError(t, err)
	assert.True(t, has)
}

func TestClientDetectError(t *testing.T) {
	srv := newSileroServer(t, 0, http.StatusInternalServerError)
	client := NewClient(srv.URL, 0)

	resp, err := client.DetectFromBytes(context.Background(), []byte("RIFF"), "x.wav", nil)
	require.Error(t, err)
	assert.Equal(t, "boom", resp.Message)
}

func TestVerifier(t *testing.T) {
	utt := &audio.Utterance{Samples: make([]int16, 1600), SampleRate: 16000}
	ctx := context.Background()

	var none *Verifier
	assert.True(t, none.HasSpeech(ctx, utt), "no server configured")
	assert.Nil(t, NewVerifier(DefaultConfig(), nil))

	cfg := DefaultConfig()
	cfg.ServerURL = newSileroServer(t, 0, http.StatusOK).URL
	assert.False(t, NewVerifier(cfg, nil).HasSpeech(ctx, utt))

	cfg.ServerURL = newSileroServer(t, 1, http.StatusOK).URL
	assert.True(t, NewVerifier(cfg, nil).HasSpeech(ctx, utt))

	cfg.ServerURL = newSileroServer(t, 0, http.StatusInternalServerError).URL
	assert.True(t, NewVerifier(cfg, nil).HasSpeech(ctx, utt), "server errors fail open")
}
