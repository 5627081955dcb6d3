package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandemhq/profile-agent/internal/action"
	"github.com/tandemhq/profile-agent/internal/conversation"
	"github.com/tandemhq/profile-agent/internal/health"
	"github.com/tandemhq/profile-agent/internal/llm"
	"github.com/tandemhq/profile-agent/internal/metrics"
	"github.com/tandemhq/profile-agent/internal/persona"
	"github.com/tandemhq/profile-agent/internal/render"
	"github.com/tandemhq/profile-agent/internal/session"
	"github.com/tandemhq/profile-agent/internal/twilio"
)

type echoProvider struct{}

func (echoProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Text: `{"message": "hello there"}`}, nil
}

type nilMatcher struct{}

func (nilMatcher) Find(_ context.Context, _ string, _ int) ([]session.Candidate, error) {
	return nil, nil
}

type nilRenderer struct{}

func (nilRenderer) Render(_ context.Context, snap *session.Snapshot) (string, error) {
	return "https://tandem.example/p/" + snap.ID, nil
}

// testApp creates a Fiber app with all routes for testing.
func testApp(t *testing.T, apiKey string) (*fiber.App, *session.Store) {
	t.Helper()
	logger := zerolog.Nop()
	store := session.NewStore(session.NewMemoryKV(), logger)
	exec := action.NewExecutor(nilRenderer{}, nilMatcher{}, store, 3, logger)
	orch := conversation.New(store, echoProvider{}, exec, twilio.NewLogSender(logger), persona.Default(), metrics.New(), logger)

	verifier := render.NewLocalRenderer("https://tandem.example", "test-key", logger)
	srv := NewServer(Config{
		ListenAddr:  ":0",
		AdminAPIKey: apiKey,
	}, orch, store, verifier, health.NewChecker(logger), metrics.New(), logger)
	return srv.App(), store
}

func postWebhook(t *testing.T, app *fiber.App, form url.Values) *http.Response {
	t.Helper()
	req, _ := http.NewRequest("POST", "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestServer_HealthzEndpoint(t *testing.T) {
	app, _ := testApp(t, "")

	req, _ := http.NewRequest("GET", "/healthz", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_ReadyzEndpoint(t *testing.T) {
	app, _ := testApp(t, "")

	req, _ := http.NewRequest("GET", "/readyz", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	app, _ := testApp(t, "")

	req, _ := http.NewRequest("GET", "/metrics", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhook_RunsTurnAndAcks(t *testing.T) {
	app, store := testApp(t, "")

	form := url.Values{"From": {"+15550001111"}, "Body": {"hi"}}
	resp := postWebhook(t, app, form)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	sess, err := store.ByContact(context.Background(), "+15550001111")
	require.NoError(t, err)
	require.Len(t, sess.MessageLog, 2)
	assert.Equal(t, "hello there", sess.MessageLog[1].Text)
}

func TestWebhook_CollectsMedia(t *testing.T) {
	app, store := testApp(t, "")

	form := url.Values{
		"From":      {"+15550001111"},
		"Body":      {"photos!"},
		"NumMedia":  {"2"},
		"MediaUrl0": {"https://cdn.example/a.jpg"},
		"MediaUrl1": {"https://cdn.example/b.jpg"},
	}
	resp := postWebhook(t, app, form)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	sess, err := store.ByContact(context.Background(), "+15550001111")
	require.NoError(t, err)
	assert.Len(t, sess.Aux.Photos, 2)
}

func TestWebhook_MissingFromStillAcks(t *testing.T) {
	app, _ := testApp(t, "")
	resp := postWebhook(t, app, url.Values{"Body": {"hi"}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSharePage_RoundTrip(t *testing.T) {
	app, store := testApp(t, "")

	snap := &session.Snapshot{
		ID:     "prof-1",
		Status: session.StatusCommitted,
		Fields: map[string]any{"name": "Sam"},
	}
	require.NoError(t, store.SaveProfile(context.Background(), snap))

	verifier := render.NewLocalRenderer("https://tandem.example", "test-key", zerolog.Nop())
	shareURL, err := verifier.Render(context.Background(), snap)
	require.NoError(t, err)
	token := strings.TrimPrefix(shareURL, "https://tandem.example/p/")

	req, _ := http.NewRequest("GET", "/p/"+token, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got session.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "prof-1", got.ID)
}

func TestSharePage_BadToken(t *testing.T) {
	app, _ := testApp(t, "")
	req, _ := http.NewRequest("GET", "/p/garbage", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminAPI_RequiresKey(t *testing.T) {
	app, _ := testApp(t, "sekrit")

	req, _ := http.NewRequest("GET", "/api/v1/sessions", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest("GET", "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest("GET", "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminAPI_DisabledWithoutKey(t *testing.T) {
	app, _ := testApp(t, "")

	req, _ := http.NewRequest("GET", "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminAPI_SessionLifecycle(t *testing.T) {
	app, store := testApp(t, "sekrit")

	sess := session.New("+15550001111", "Sam")
	require.NoError(t, store.Save(context.Background(), sess))
	require.NoError(t, store.PointContact(context.Background(), "+15550001111", sess.ID))

	req, _ := http.NewRequest("GET", "/api/v1/sessions/"+sess.ID, nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest("DELETE", "/api/v1/sessions/"+sess.ID, nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req, _ = http.NewRequest("GET", "/api/v1/sessions/"+sess.ID, nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	app, _ := testApp(t, "")

	req, _ := http.NewRequest("GET", "/healthz", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, _ = http.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", "carrier-7f3a")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "carrier-7f3a", resp.Header.Get("X-Request-ID"))

	// absurdly long inbound IDs are replaced, not echoed
	req, _ = http.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	got := resp.Header.Get("X-Request-ID")
	assert.NotEmpty(t, got)
	assert.NotContains(t, got, "xxxx")
}
