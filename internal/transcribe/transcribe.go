package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transcriber converts a finished call recording into text.
//
// Implementations must honor the context deadline; recording processing is
// webhook-driven and must never hang on a slow vendor.
type Transcriber interface {
	Transcribe(ctx context.Context, recordingURL string) (string, error)
}

// Disabled is used when no transcription vendor is configured.
type Disabled struct{}

var ErrDisabled = errors.New("transcribe: no vendor configured")

func (Disabled) Transcribe(ctx context.Context, recordingURL string) (string, error) {
	return "", ErrDisabled
}

// HTTPClient sends the recording URL to an external speech-to-text vendor.
// The vendor fetches the audio itself and returns the transcript inline.
type HTTPClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

func (c *HTTPClient) Transcribe(ctx context.Context, recordingURL string) (string, error) {
	if recordingURL == "" {
		return "", errors.New("transcribe: recording url is required")
	}

	body, err := json.Marshal(transcribeRequest{AudioURL: recordingURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcribe: vendor returned %d: %s", resp.StatusCode, string(b))
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("transcribe: bad vendor response: %w", err)
	}
	return out.Text, nil
}
