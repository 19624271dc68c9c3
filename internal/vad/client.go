package vad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Client talks to a Silero VAD HTTP server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// DetectRequest represents the request parameters for VAD detection
type DetectRequest struct {
	Threshold            float64 `json:"threshold,omitempty"`
	MinSpeechDurationMs  int     `json:"min_speech_duration_ms,omitempty"`
	MinSilenceDurationMs int     `json:"min_silence_duration_ms,omitempty"`
}

// SpeechSegment represents a detected speech segment
type SpeechSegment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// DetectResponse represents the response from VAD detection
type DetectResponse struct {
	Status         string           `json:"status"`
	Message        string           `json:"message,omitempty"`
	SpeechSegments []SpeechSegment  `json:"speech_segments"`
	Statistics     DetectStatistics `json:"statistics"`
}

// DetectStatistics represents the statistics from VAD detection
type DetectStatistics struct {
	TotalSegments       int     `json:"total_segments"`
	TotalSpeechDuration float64 `json:"total_speech_duration"`
	TotalAudioDuration  float64 `json:"total_audio_duration"`
	SpeechRatio         float64 `json:"speech_ratio"`
	SampleRate          int     `json:"sample_rate"`
	ThresholdUsed       float64 `json:"threshold_used"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// InfoResponse represents the model info response
type InfoResponse struct {
	ModelName    string `json:"model_name"`
	SampleRate   int    `json:"sample_rate"`
	WindowSizeMs int    `json:"window_size_ms"`
}

// NewClient creates a new VAD client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Health checks if the VAD service is healthy
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var healthResp HealthResponse
	if err := c.getJSON(ctx, "/health", &healthResp); err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return &healthResp, nil
}

// Info gets information about the VAD model
func (c *Client) Info(ctx context.Context) (*InfoResponse, error) {
	var infoResp InfoResponse
	if err := c.getJSON(ctx, "/info", &infoResp); err != nil {
		return nil, fmt.Errorf("info request failed: %w", err)
	}
	return &infoResp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// DetectFromFile detects speech activity from an audio file
func (c *Client) DetectFromFile(ctx context.Context, audioFilePath string, req *DetectRequest) (*DetectResponse, error) {
	data, err := os.ReadFile(audioFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	return c.DetectFromBytes(ctx, data, filepath.Base(audioFilePath), req)
}

// DetectFromBytes detects speech activity from WAV bytes
func (c *Client) DetectFromBytes(ctx context.Context, audioData []byte, filename string, req *DetectRequest) (*DetectResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio_file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audioData)); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	if req != nil {
		if req.Threshold > 0 {
			_ = writer.WriteField("threshold", strconv.FormatFloat(req.Threshold, 'f', 2, 64))
		}
		if req.MinSpeechDurationMs > 0 {
			_ = writer.WriteField("min_speech_duration_ms", strconv.Itoa(req.MinSpeechDurationMs))
		}
		if req.MinSilenceDurationMs > 0 {
			_ = writer.WriteField("min_silence_duration_ms", strconv.Itoa(req.MinSilenceDurationMs))
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var detectResp DetectResponse
	if err := json.NewDecoder(resp.Body).Decode(&detectResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &detectResp, fmt.Errorf("detection failed with status %d: %s", resp.StatusCode, detectResp.Message)
	}
	if detectResp.Status != "success" {
		return &detectResp, fmt.Errorf("detection unsuccessful: %s", detectResp.Message)
	}

	return &detectResp, nil
}

// HasSpeech checks if the WAV bytes contain any speech
func (c *Client) HasSpeech(ctx context.Context, audioData []byte, req *DetectRequest) (bool, error) {
	resp, err := c.DetectFromBytes(ctx, audioData, "utterance.wav", req)
	if err != nil {
		return false, err
	}
	return len(resp.SpeechSegments) > 0, nil
}
