package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanForSpeech(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"citations", "El **sol** es una estrella [1][2].", "El sol es una estrella."},
		{"single citation", "Madrid [3] es la capital", "Madrid es la capital"},
		{"link", "Vea [la guía](https://example.com/a_b_c) _ahora_", "Vea la guía ahora"},
		{"italic", "Es *muy* importante", "Es muy importante"},
		{"underscore bold", "__Nota__: nada", "Nota: nada"},
		{"whitespace", "Hola\n\n  mundo  ,  adiós !", "Hola mundo, adiós!"},
		{"backticks", "usa `go test`", "usa go test"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanForSpeech(tt.in))
		})
	}
}

type fakeBackend struct {
	calls []string
	err   error
}

func (f *fakeBackend) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("audio:" + text), nil
}

func TestServiceCleansAndCaches(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewService(DefaultConfig(), backend, nil)

	data, err := svc.Synthesize(context.Background(), "**¿Señor?**")
	require.NoError(t, err)
	assert.Equal(t, "audio:¿Señor?", string(data))

	data, err = svc.Synthesize(context.Background(), "¿Señor?")
	require.NoError(t, err)
	assert.Equal(t, "audio:¿Señor?", string(data))

	assert.Equal(t, []string{"¿Señor?"}, backend.calls, "second call served from cache")
	assert.Equal(t, 1, svc.CacheLen())

	svc.ClearCache()
	assert.Zero(t, svc.CacheLen())
}

func TestServiceCacheEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheEntries = 2
	backend := &fakeBackend{}
	svc := NewService(cfg, backend, nil)
	ctx := context.Background()

	for _, text := range []string{"uno", "dos", "tres", "dos", "uno"} {
		_, err := svc.Synthesize(ctx, text)
		require.NoError(t, err)
	}
	// "uno" was evicted by "tres"; "dos" was still cached.
	assert.Equal(t, []string{"uno", "dos", "tres", "uno"}, backend.calls)
	assert.Equal(t, 2, svc.CacheLen())
}

func TestServiceCacheDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheEntries = 0
	backend := &fakeBackend{}
	svc := NewService(cfg, backend, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.Synthesize(context.Background(), "hola")
		require.NoError(t, err)
	}
	assert.Len(t, backend.calls, 3)
	assert.Zero(t, svc.CacheLen())
}

func TestServiceErrors(t *testing.T) {
	backend := &fakeBackend{err: errors.New("quota exceeded")}
	svc := NewService(DefaultConfig(), backend, nil)

	_, err := svc.Synthesize(context.Background(), "[1][2]")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, backend.calls)

	_, err = svc.Synthesize(context.Background(), "hola")
	assert.ErrorIs(t, err, backend.err)
	assert.Zero(t, svc.CacheLen(), "failures are not cached")
}

func TestServiceTruncatesLongText(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTextLength = 5
	backend := &fakeBackend{}
	svc := NewService(cfg, backend, nil)

	_, err := svc.Synthesize(context.Background(), "señores")
	require.NoError(t, err)
	assert.Equal(t, []string{"señor"}, backend.calls)
}

func speechServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "tts-1", req["model"])
			assert.Equal(t, "onyx", req["voice"])
			assert.Equal(t, "mp3", req["response_format"])
			assert.NotEmpty(t, req["input"])
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = url + "/v1"
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestOpenAISynthesizer(t *testing.T) {
	srv := speechServer(t, http.StatusOK, "ID3-fake-mp3")
	synth, err := NewOpenAISynthesizer(testConfig(srv.URL))
	require.NoError(t, err)

	data, err := synth.Synthesize(context.Background(), "Buenos días, señor")
	require.NoError(t, err)
	assert.Equal(t, "ID3-fake-mp3", string(data))
}

func TestOpenAISynthesizerErrors(t *testing.T) {
	srv := speechServer(t, http.StatusOK, "")
	synth, err := NewOpenAISynthesizer(testConfig(srv.URL))
	require.NoError(t, err)
	_, err = synth.Synthesize(context.Background(), "hola")
	assert.Error(t, err, "empty body")

	srv = speechServer(t, http.StatusInternalServerError, `{"error": {"message": "boom"}}`)
	synth, err = NewOpenAISynthesizer(testConfig(srv.URL))
	require.NoError(t, err)
	_, err = synth.Synthesize(context.Background(), "hola")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Speed = 10
	cfg.Format = "opus"
	err := cfg.Validate()
	assert.ErrorContains(t, err, "speed")
	assert.ErrorContains(t, err, "format")

	_, err = NewOpenAISynthesizer(DefaultConfig())
	assert.ErrorContains(t, err, "API key")
}

func TestSaveAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "hola"+FileExtension(FormatMP3))
	require.NoError(t, SaveAudio([]byte("data"), path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
	assert.True(t, strings.HasSuffix(path, ".mp3"))
	assert.Equal(t, ".wav", FileExtension(FormatWAV))

	assert.Error(t, SaveAudio(nil, path))
}

func TestOpenAISynthesizerLive(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping TTS client tests")
	}

	cfg := DefaultConfig()
	cfg.APIKey = apiKey
	synth, err := NewOpenAISynthesizer(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := synth.Synthesize(ctx, "Hola")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
