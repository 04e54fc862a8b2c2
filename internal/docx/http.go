package docx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
)

// HTTPRenderer calls an external document-rendering service over HTTP. The
// template engine itself is out of scope (spec §1); this is only the
// transport the controller speaks against a deployment-specific endpoint.
type HTTPRenderer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRenderer(baseURL string) *HTTPRenderer {
	return &HTTPRenderer{baseURL: baseURL, client: &http.Client{Timeout: time.Minute}}
}

type renderRequest struct {
	SummaryType models.SummaryType `json:"summary_type"`
	Content     string             `json:"content"`
	Context     map[string]any     `json:"context"`
}

func (r *HTTPRenderer) Render(ctx context.Context, summaryType models.SummaryType, content string, context map[string]any) ([]byte, error) {
	body, err := json.Marshal(renderRequest{SummaryType: summaryType, Content: content, Context: context})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document service returned %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}
