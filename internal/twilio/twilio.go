// Package twilio sends outbound SMS/MMS through the Twilio Messages API.
// A log-only sender stands in when no credentials are configured, so local
// runs work end to end without a carrier account.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/tandemhq/profile-agent/internal/errors"
)

const defaultBaseURL = "https://api.twilio.com"

// Sender delivers one outbound message.
type Sender interface {
	Send(ctx context.Context, to, body, mediaURL string) error
}

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client sends messages through the Twilio REST API.
type Client struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient HTTPClient
	logger     zerolog.Logger
}

// NewClient creates a Twilio sender.
func NewClient(accountSID, authToken, from string, logger zerolog.Logger) *Client {
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "twilio").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc HTTPClient) { c.httpClient = hc }

// SetBaseURL overrides the API endpoint (for testing).
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimSuffix(u, "/") }

type apiResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"` // error body field
}

// Send posts one message to the Messages endpoint. A media URL upgrades the
// message to MMS.
func (c *Client) Send(ctx context.Context, to, body, mediaURL string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)
	if mediaURL != "" {
		form.Set("MediaUrl", mediaURL)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &perrors.APIError{Service: "twilio", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if resp.StatusCode >= 400 {
		var apiErr apiResponse
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = string(raw)
		}
		return perrors.NewAPIError("twilio", resp.StatusCode, msg)
	}

	var out apiResponse
	_ = json.Unmarshal(raw, &out)
	c.logger.Debug().Str("to", to).Str("sid", out.SID).Str("status", out.Status).Msg("message sent")
	return nil
}

// LogSender writes outbound messages to the log instead of the carrier.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a sender for credential-less local runs.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "twilio.log").Logger()}
}

func (s *LogSender) Send(_ context.Context, to, body, mediaURL string) error {
	evt := s.logger.Info().Str("to", to).Str("body", body)
	if mediaURL != "" {
		evt = evt.Str("media_url", mediaURL)
	}
	evt.Msg("outbound message (not delivered, no carrier configured)")
	return nil
}
