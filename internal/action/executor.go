package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tandemhq/profile-agent/internal/session"
)

// Result is the outcome of one executed action.
type Result struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

func success(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

// Outbound is one message the transport collaborator must deliver.
type Outbound struct {
	To       string `json:"to"`
	Body     string `json:"body"`
	MediaURL string `json:"media_url,omitempty"`
}

// Renderer is the rendering/URL collaborator: given a frozen snapshot it
// returns a permanent shareable URL.
type Renderer interface {
	Render(ctx context.Context, snap *session.Snapshot) (string, error)
}

// MatchFinder is the recommendation collaborator. It may return fewer than
// n candidates; the executor never pads the list.
type MatchFinder interface {
	Find(ctx context.Context, excludeProfileID string, n int) ([]session.Candidate, error)
}

// ProfileSaver persists committed snapshots into the matching pool.
type ProfileSaver interface {
	SaveProfile(ctx context.Context, snap *session.Snapshot) error
}

// Executor validates and applies actions to a session. Handlers never throw
// across the action boundary: any internal fault becomes a failed Result,
// and a failed action never aborts the remaining actions of the same turn.
type Executor struct {
	renderer Renderer
	matcher  MatchFinder
	profiles ProfileSaver
	dropSize int
	logger   zerolog.Logger
}

// NewExecutor wires the executor's collaborators.
func NewExecutor(renderer Renderer, matcher MatchFinder, profiles ProfileSaver, dropSize int, logger zerolog.Logger) *Executor {
	if dropSize <= 0 {
		dropSize = 3
	}
	return &Executor{
		renderer: renderer,
		matcher:  matcher,
		profiles: profiles,
		dropSize: dropSize,
		logger:   logger.With().Str("component", "action.executor").Logger(),
	}
}

// Execute runs one raw action against the session. Every attempt - accepted,
// rejected or crashed - is appended to the session's action log with its
// literal payload and result.
func (e *Executor) Execute(ctx context.Context, sess *session.Session, raw json.RawMessage) (res Result, out []Outbound) {
	actionType := "unknown"

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str("action", actionType).Msg("action handler panicked")
			res = failure("internal fault in %s handler", actionType)
			out = nil
		}
		e.audit(sess, actionType, raw, res)
	}()

	env, err := Decode(raw)
	if err != nil {
		res = failure("%v", err)
		return res, nil
	}
	actionType = string(env.Type)

	if err := Validate(env, sess.Stage); err != nil {
		res = failure("%v", err)
		return res, nil
	}

	switch env.Type {
	case TypeSendMessage:
		res, out = e.handleSendMessage(sess, env)
	case TypeUpdateStage:
		res = e.handleUpdateStage(sess, env)
	case TypeUpdateProfileField:
		res = e.handleUpdateProfileField(sess, env)
	case TypeConfirmPrimaryUser:
		res = e.handleConfirmPrimaryUser(sess, env)
	case TypeGenerateProfile:
		res = e.handleGenerateProfile(ctx, sess)
	case TypeFinalizeProfile:
		res = e.handleFinalizeProfile(ctx, sess)
	case TypeRequestMatches:
		res, out = e.handleRequestMatches(ctx, sess)
	case TypeChooseMatch:
		res = e.handleChooseMatch(sess, env)
	default:
		// registry and dispatch disagree; treat as rejection, not a crash
		res = failure("no handler for action type %q", env.Type)
	}
	return res, out
}

func (e *Executor) audit(sess *session.Session, actionType string, payload json.RawMessage, res Result) {
	resJSON, err := json.Marshal(res)
	if err != nil {
		resJSON = nil
	}
	sess.AppendAction(session.ActionRecord{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		ActionType: actionType,
		Payload:    payload,
		Result:     resJSON,
		Success:    res.Success,
		Error:      res.Error,
	})
	if !res.Success {
		e.logger.Warn().Str("action", actionType).Str("error", res.Error).Msg("action failed")
	}
}
