package twilio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/tandemhq/profile-agent/internal/errors"
)

type stubHTTP struct {
	status      int
	body        string
	lastRequest *http.Request
	lastForm    string
}

func (s *stubHTTP) Do(req *http.Request) (*http.Response, error) {
	s.lastRequest = req
	raw, _ := io.ReadAll(req.Body)
	s.lastForm = string(raw)
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewBufferString(s.body)),
	}, nil
}

func TestSend_FormAndAuth(t *testing.T) {
	stub := &stubHTTP{status: 201, body: `{"sid":"SM123","status":"queued"}`}
	c := NewClient("AC111", "secret", "+15005550006", zerolog.Nop())
	c.SetHTTPClient(stub)

	err := c.Send(context.Background(), "+15550001111", "hello", "")
	require.NoError(t, err)

	require.NotNil(t, stub.lastRequest)
	assert.Contains(t, stub.lastRequest.URL.String(), "/Accounts/AC111/Messages.json")
	user, pass, ok := stub.lastRequest.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "AC111", user)
	assert.Equal(t, "secret", pass)
	assert.Contains(t, stub.lastForm, "To=%2B15550001111")
	assert.Contains(t, stub.lastForm, "From=%2B15005550006")
	assert.Contains(t, stub.lastForm, "Body=hello")
	assert.NotContains(t, stub.lastForm, "MediaUrl")
}

func TestSend_MediaURLMakesMMS(t *testing.T) {
	stub := &stubHTTP{status: 201, body: `{"sid":"SM123"}`}
	c := NewClient("AC111", "secret", "+15005550006", zerolog.Nop())
	c.SetHTTPClient(stub)

	err := c.Send(context.Background(), "+15550001111", "pic", "https://cdn.example/a.jpg")
	require.NoError(t, err)
	assert.Contains(t, stub.lastForm, "MediaUrl=https%3A%2F%2Fcdn.example%2Fa.jpg")
}

func TestSend_APIErrorSurfacesMessage(t *testing.T) {
	stub := &stubHTTP{status: 400, body: `{"message":"The 'To' number is not valid"}`}
	c := NewClient("AC111", "secret", "+15005550006", zerolog.Nop())
	c.SetHTTPClient(stub)

	err := c.Send(context.Background(), "bogus", "hello", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid")
	assert.False(t, perrors.IsRetryable(err))
}

func TestSend_RateLimitIsRetryable(t *testing.T) {
	stub := &stubHTTP{status: 429, body: `{"message":"Too Many Requests"}`}
	c := NewClient("AC111", "secret", "+15005550006", zerolog.Nop())
	c.SetHTTPClient(stub)

	err := c.Send(context.Background(), "+15550001111", "hello", "")
	require.Error(t, err)
	assert.True(t, perrors.IsRetryable(err))
}

func TestLogSender_NeverFails(t *testing.T) {
	s := NewLogSender(zerolog.Nop())
	assert.NoError(t, s.Send(context.Background(), "+15550001111", "hello", ""))
}
