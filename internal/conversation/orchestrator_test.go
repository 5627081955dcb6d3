package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandemhq/profile-agent/internal/action"
	"github.com/tandemhq/profile-agent/internal/llm"
	"github.com/tandemhq/profile-agent/internal/metrics"
	"github.com/tandemhq/profile-agent/internal/persona"
	"github.com/tandemhq/profile-agent/internal/retry"
	"github.com/tandemhq/profile-agent/internal/session"
	"github.com/tandemhq/profile-agent/internal/stage"
)

type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
}

func (p *scriptedProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	reply := p.replies[0]
	if len(p.replies) > 1 {
		p.replies = p.replies[1:]
	}
	return &llm.CompletionResponse{Text: reply}, nil
}

type captureSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	To, Body, MediaURL string
}

func (s *captureSender) Send(_ context.Context, to, body, mediaURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{to, body, mediaURL})
	return nil
}

type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, snap *session.Snapshot) (string, error) {
	return "https://tandem.example/p/" + snap.ID, nil
}

type stubMatcher struct{}

func (stubMatcher) Find(_ context.Context, _ string, _ int) ([]session.Candidate, error) {
	return nil, nil
}

func newTestOrchestrator(t *testing.T, provider llm.Provider) (*Orchestrator, *session.Store, *captureSender) {
	t.Helper()
	store := session.NewStore(session.NewMemoryKV(), zerolog.Nop())
	exec := action.NewExecutor(stubRenderer{}, stubMatcher{}, store, 3, zerolog.Nop())
	sender := &captureSender{}
	o := New(store, provider, exec, sender, persona.Default(), metrics.New(), zerolog.Nop())
	o.SetRetryConfig(retry.Config{MaxAttempts: 1})
	return o, store, sender
}

func TestHandleInbound_CreatesSessionAndReplies(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"message": "Hey! Who are we setting up today?", "actions": []}`,
	}}
	o, store, sender := newTestOrchestrator(t, provider)

	err := o.HandleInbound(context.Background(), Inbound{From: "+15550001111", Body: "hi"})
	require.NoError(t, err)

	sess, err := store.ByContact(context.Background(), "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, stage.Greeting, sess.Stage)
	require.Len(t, sess.MessageLog, 2)
	assert.Equal(t, "user", sess.MessageLog[0].Role)
	assert.Equal(t, "agent", sess.MessageLog[1].Role)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "+15550001111", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "setting up")
}

func TestHandleInbound_ExecutesActionsInOrder(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"message": "Got it, 25!", "actions": [
			{"type": "update_stage", "stage": "COLLECTING"},
			{"type": "update_profile_field", "field": "age", "value": "twenty-five"}
		]}`,
	}}
	o, store, _ := newTestOrchestrator(t, provider)

	err := o.HandleInbound(context.Background(), Inbound{From: "+15550001111", Body: "I'm twenty five"})
	require.NoError(t, err)

	sess, err := store.ByContact(context.Background(), "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, stage.Collecting, sess.Stage)
	assert.Equal(t, float64(25), toFloat(sess.ProfileFields["age"]))
	require.Len(t, sess.ActionLog, 2)
	assert.True(t, sess.ActionLog[0].Success)
	assert.True(t, sess.ActionLog[1].Success)
}

func TestHandleInbound_FailedActionDoesNotAbortTurn(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"message": "noted", "actions": [
			{"type": "update_profile_field", "field": "age", "value": "5"},
			{"type": "update_stage", "stage": "COLLECTING"}
		]}`,
	}}
	o, store, sender := newTestOrchestrator(t, provider)

	require.NoError(t, o.HandleInbound(context.Background(), Inbound{From: "+15550001111", Body: "hi"}))

	sess, err := store.ByContact(context.Background(), "+15550001111")
	require.NoError(t, err)
	// first action failed validation, second still ran, reply still sent
	assert.False(t, sess.ActionLog[0].Success)
	assert.True(t, sess.ActionLog[1].Success)
	assert.Equal(t, stage.Collecting, sess.Stage)
	require.Len(t, sender.sent, 1)
}

func TestHandleInbound_ModelOutageSendsFallback(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("connection refused")}
	o, store, sender := newTestOrchestrator(t, provider)

	err := o.HandleInbound(context.Background(), Inbound{From: "+15550001111", Body: "hi"})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, persona.Default().FallbackMessage, sender.sent[0].Body)

	// the inbound message is still persisted
	sess, err := store.ByContact(context.Background(), "+15550001111")
	require.NoError(t, err)
	require.Len(t, sess.MessageLog, 2)
	assert.Equal(t, "hi", sess.MessageLog[0].Text)
}

func TestHandleInbound_NonJSONReplyUsedVerbatim(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"Sure thing, tell me more!"}}
	o, _, sender := newTestOrchestrator(t, provider)

	require.NoError(t, o.HandleInbound(context.Background(), Inbound{From: "+15550001111", Body: "hi"}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Sure thing, tell me more!", sender.sent[0].Body)
}

func TestHandleInbound_MediaRecordedOnce(t *testing.T) {
	provider := &scriptedProvider{replies: []string{`{"message": "nice photo!"}`}}
	o, store, _ := newTestOrchestrator(t, provider)

	in := Inbound{From: "+15550001111", Body: "here", MediaURLs: []string{"https://cdn.example/a.jpg"}}
	require.NoError(t, o.HandleInbound(context.Background(), in))
	require.NoError(t, o.HandleInbound(context.Background(), in))

	sess, err := store.ByContact(context.Background(), "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example/a.jpg"}, sess.Aux.Photos)
}

func TestHandleInbound_FriendJoinsByCode(t *testing.T) {
	provider := &scriptedProvider{replies: []string{`{"message": "welcome!"}`}}
	o, store, _ := newTestOrchestrator(t, provider)

	require.NoError(t, o.HandleInbound(context.Background(), Inbound{From: "+15550001111", Body: "hi"}))
	creatorSess, err := store.ByContact(context.Background(), "+15550001111")
	require.NoError(t, err)

	body := fmt.Sprintf("joining %s!", creatorSess.ID)
	require.NoError(t, o.HandleInbound(context.Background(), Inbound{From: "+15550002222", Body: body}))

	joined, err := store.ByContact(context.Background(), "+15550002222")
	require.NoError(t, err)
	assert.Equal(t, creatorSess.ID, joined.ID)
	require.Len(t, joined.Participants, 2)
	assert.Equal(t, session.RoleFriend, joined.Participants[1].Role)
}

func TestHandleInbound_UnknownCodeStartsFreshSession(t *testing.T) {
	provider := &scriptedProvider{replies: []string{`{"message": "hey!"}`}}
	o, store, _ := newTestOrchestrator(t, provider)

	require.NoError(t, o.HandleInbound(context.Background(), Inbound{From: "+15550002222", Body: "ABC234 please"}))
	sess, err := store.ByContact(context.Background(), "+15550002222")
	require.NoError(t, err)
	require.Len(t, sess.Participants, 1)
	assert.Equal(t, session.RoleCreator, sess.Participants[0].Role)
}

func TestHandleInbound_SecondTurnSeesFirstTurnState(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"message": "ok", "actions": [{"type": "update_stage", "stage": "COLLECTING"}]}`,
		`{"message": "ok", "actions": [{"type": "update_profile_field", "field": "name", "value": "Sam"}]}`,
	}}
	o, store, _ := newTestOrchestrator(t, provider)

	require.NoError(t, o.HandleInbound(context.Background(), Inbound{From: "+15550001111", Body: "hi"}))
	require.NoError(t, o.HandleInbound(context.Background(), Inbound{From: "+15550001111", Body: "Sam"}))

	sess, err := store.ByContact(context.Background(), "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, stage.Collecting, sess.Stage)
	assert.Equal(t, "Sam", sess.ProfileFields["name"])
	assert.Len(t, sess.MessageLog, 4)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	}
	return -1
}
