package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/tandemhq/profile-agent/internal/errors"
	"github.com/tandemhq/profile-agent/internal/session"
)

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ServiceRenderer delegates rendering to an external render service that
// hosts the profile page and returns its permanent URL.
type ServiceRenderer struct {
	baseURL    string
	httpClient HTTPClient
	logger     zerolog.Logger
}

// NewServiceRenderer creates a client for the render service.
func NewServiceRenderer(baseURL string, logger zerolog.Logger) *ServiceRenderer {
	return &ServiceRenderer{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "render.service").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (r *ServiceRenderer) SetHTTPClient(hc HTTPClient) {
	r.httpClient = hc
}

type renderRequest struct {
	ProfileID string         `json:"profile_id"`
	Fields    map[string]any `json:"fields"`
	Photos    []string       `json:"photos"`
}

type renderResponse struct {
	URL string `json:"url"`
}

// Render posts the snapshot and returns the hosted URL. Errors carry status
// codes so the retry layer can tell transient failures from permanent ones.
func (r *ServiceRenderer) Render(ctx context.Context, snap *session.Snapshot) (string, error) {
	payload, err := json.Marshal(renderRequest{
		ProfileID: snap.ID,
		Fields:    snap.Fields,
		Photos:    snap.Photos,
	})
	if err != nil {
		return "", fmt.Errorf("encoding render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", &perrors.APIError{Service: "render", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", perrors.NewAPIError("render", resp.StatusCode, string(body))
	}

	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding render response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("render service returned no url")
	}
	r.logger.Debug().Str("profile_id", snap.ID).Str("url", out.URL).Msg("profile rendered")
	return out.URL, nil
}
