package diarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPEngine calls an external diarization service over HTTP. The
// embedding/clustering model is out of scope (spec §1); this is only the
// transport the Diarization Worker speaks against a deployment-specific
// endpoint.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
}

func NewHTTPEngine(baseURL string) *HTTPEngine {
	return &HTTPEngine{baseURL: baseURL, client: &http.Client{Timeout: 15 * time.Minute}}
}

type diarizeRequest struct {
	AudioPath string    `json:"audio_path"`
	Profiles  []Profile `json:"profiles"`
	Params    Params    `json:"params"`
}

func (e *HTTPEngine) Diarize(ctx context.Context, audioPath string, profiles []Profile, params Params) ([]Segment, error) {
	body, err := json.Marshal(diarizeRequest{AudioPath: audioPath, Profiles: profiles, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/diarize", bytes.NewReader(body))
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
		return nil, fmt.Errorf("diarization service returned %d: %s", resp.StatusCode, string(data))
	}

	var segments []Segment
	if err := json.NewDecoder(resp.Body).Decode(&segments); err != nil {
		return nil, err
	}
	return segments, nil
}
