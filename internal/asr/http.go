package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPEngine calls an external ASR service over HTTP. The model that backs
// it is out of scope (spec §1); this is only the transport the Transcription
// Worker speaks against a deployment-specific endpoint.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
}

func NewHTTPEngine(baseURL string) *HTTPEngine {
	return &HTTPEngine{baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Minute}}
}

type transcribeRequest struct {
	AudioPath string `json:"audio_path"`
	Language  string `json:"language"`
}

func (e *HTTPEngine) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	body, err := json.Marshal(transcribeRequest{AudioPath: audioPath, Language: language})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("asr service returned %d: %s", resp.StatusCode, string(data))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
