// Package conversation runs the turn loop: an inbound text arrives, the
// model proposes a reply and actions, the executor applies whatever survives
// validation, and the session is persisted exactly once. A model outage
// degrades to the persona's fallback line; it never drops the turn.
package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tandemhq/profile-agent/internal/action"
	perrors "github.com/tandemhq/profile-agent/internal/errors"
	"github.com/tandemhq/profile-agent/internal/llm"
	"github.com/tandemhq/profile-agent/internal/metrics"
	"github.com/tandemhq/profile-agent/internal/persona"
	"github.com/tandemhq/profile-agent/internal/retry"
	"github.com/tandemhq/profile-agent/internal/session"
	"github.com/tandemhq/profile-agent/internal/twilio"
)

// Inbound is one received message, already decoded from the carrier webhook.
type Inbound struct {
	From      string
	Body      string
	MediaURLs []string
}

// Orchestrator owns one conversational turn end to end.
type Orchestrator struct {
	store    *session.Store
	provider llm.Provider
	executor *action.Executor
	sender   twilio.Sender
	persona  persona.Persona
	retryCfg retry.Config
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// New wires the orchestrator's collaborators.
func New(
	store *session.Store,
	provider llm.Provider,
	executor *action.Executor,
	sender twilio.Sender,
	p persona.Persona,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		provider: provider,
		executor: executor,
		sender:   sender,
		persona:  p,
		retryCfg: retry.DefaultConfig(),
		metrics:  m,
		logger:   logger.With().Str("component", "conversation").Logger(),
	}
}

// SetRetryConfig overrides the model-call retry policy.
func (o *Orchestrator) SetRetryConfig(cfg retry.Config) { o.retryCfg = cfg }

// HandleInbound processes one inbound message and delivers every resulting
// outbound. Turns on the same session are serialized; turns on different
// sessions run concurrently.
func (o *Orchestrator) HandleInbound(ctx context.Context, in Inbound) error {
	started := time.Now()

	sess, joined, err := o.resolveSession(ctx, in)
	if err != nil {
		return err
	}

	o.store.Lock(sess.ID)
	defer o.store.Unlock(sess.ID)

	// reload under the lock so this turn sees the previous turn's writes
	if fresh, err := o.store.Get(ctx, sess.ID); err == nil {
		sess = fresh
	}

	sess.AppendMessage("user", in.Body, in.From)
	for _, url := range in.MediaURLs {
		sess.AddPhoto(url)
	}
	if joined {
		o.logger.Info().Str("session", sess.ID).Str("contact", in.From).Msg("participant joined by code")
	}

	outbounds, outcome := o.runTurn(ctx, sess, in)

	if err := o.store.Save(ctx, sess); err != nil {
		o.metrics.RecordError("conversation", "save")
		return err
	}

	for _, out := range outbounds {
		if err := o.sender.Send(ctx, out.To, out.Body, out.MediaURL); err != nil {
			o.metrics.RecordError("twilio", "send")
			o.metrics.MessagesSent.WithLabelValues("failed").Inc()
			o.logger.Error().Err(err).Str("to", out.To).Msg("outbound delivery failed")
			continue
		}
		o.metrics.MessagesSent.WithLabelValues("delivered").Inc()
	}

	o.metrics.RecordTurn(string(sess.Stage), outcome, time.Since(started).Seconds())
	return nil
}

// runTurn asks the model for a decision and applies it. It never returns an
// error: a failed model call becomes the fallback reply and the turn ends
// normally.
func (o *Orchestrator) runTurn(ctx context.Context, sess *session.Session, in Inbound) ([]action.Outbound, string) {
	req := llm.CompletionRequest{
		SystemPrompt: llm.BuildSystemPrompt(o.persona, sess),
		Messages:     llm.BuildHistory(sess),
	}

	var resp *llm.CompletionResponse
	llmStarted := time.Now()
	err := retry.Do(ctx, o.retryCfg, func(ctx context.Context) error {
		var callErr error
		resp, callErr = o.provider.Complete(ctx, req)
		return callErr
	})
	o.metrics.LLMDuration.Observe(time.Since(llmStarted).Seconds())
	if err != nil {
		o.metrics.RecordError("llm", "complete")
		o.logger.Error().Err(err).Str("session", sess.ID).Msg("model call failed, sending fallback")
		fallback := o.persona.FallbackMessage
		sess.AppendMessage("agent", fallback, "")
		return []action.Outbound{{To: in.From, Body: fallback}}, "fallback"
	}

	decision := llm.ParseDecision(resp.Text)
	if decision.Fallback {
		o.logger.Warn().Str("session", sess.ID).Msg("model output was not JSON, using raw text")
	}

	var outbounds []action.Outbound
	for _, rawAction := range decision.Actions {
		res, out := o.executor.Execute(ctx, sess, rawAction)
		status := "ok"
		if !res.Success {
			status = "failed"
		}
		o.metrics.RecordAction(lastActionType(sess), status)
		outbounds = append(outbounds, out...)
	}

	if decision.Message != "" {
		sess.AppendMessage("agent", decision.Message, "")
		outbounds = append(outbounds, action.Outbound{To: in.From, Body: decision.Message})
	}
	return outbounds, "ok"
}

// resolveSession finds the session this message belongs to: the sender's
// existing session, a session they are joining by code, or a brand new one.
// The joined return is true only when this message added a new participant.
func (o *Orchestrator) resolveSession(ctx context.Context, in Inbound) (*session.Session, bool, error) {
	sess, err := o.store.ByContact(ctx, in.From)
	if err == nil {
		return sess, false, nil
	}
	if err != perrors.ErrSessionMissing {
		return nil, false, err
	}

	if target := o.findJoinTarget(ctx, in.Body); target != nil {
		target.Join(in.From, "")
		if err := o.store.PointContact(ctx, in.From, target.ID); err != nil {
			return nil, false, err
		}
		if err := o.store.Save(ctx, target); err != nil {
			return nil, false, err
		}
		return target, true, nil
	}

	sess = session.New(in.From, "")
	if err := o.store.Save(ctx, sess); err != nil {
		return nil, false, err
	}
	if err := o.store.PointContact(ctx, in.From, sess.ID); err != nil {
		return nil, false, err
	}
	o.logger.Info().Str("session", sess.ID).Str("contact", in.From).Msg("session created")
	return sess, false, nil
}

// findJoinTarget scans the message for a token that is both shaped like a
// session code and actually resolves to a stored session. Shape alone is not
// enough; six-letter words would false-positive.
func (o *Orchestrator) findJoinTarget(ctx context.Context, body string) *session.Session {
	for _, tok := range strings.Fields(body) {
		code := strings.ToUpper(strings.Trim(tok, ".,!?:;\"'"))
		if !session.ValidID(code) {
			continue
		}
		sess, err := o.store.Get(ctx, code)
		if err == nil {
			return sess
		}
	}
	return nil
}

func lastActionType(sess *session.Session) string {
	if len(sess.ActionLog) == 0 {
		return "unknown"
	}
	return sess.ActionLog[len(sess.ActionLog)-1].ActionType
}
