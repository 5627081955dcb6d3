package server

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/tandemhq/profile-agent/internal/conversation"
	perrors "github.com/tandemhq/profile-agent/internal/errors"
	"github.com/tandemhq/profile-agent/internal/health"
	"github.com/tandemhq/profile-agent/internal/session"
	"github.com/tandemhq/profile-agent/lru"
)

// maxMediaPerMessage caps how many webhook media attachments are read.
const maxMediaPerMessage = 10

// snapshotCacheSize bounds the share-page cache. Snapshots are immutable
// once committed, so cached entries never go stale.
const snapshotCacheSize = 256

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	orch      *conversation.Orchestrator
	store     *session.Store
	verifier  TokenVerifier
	checker   *health.Checker
	snapshots *lru.Cache[string, *session.Snapshot]
	logger    zerolog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(
	orch *conversation.Orchestrator,
	store *session.Store,
	verifier TokenVerifier,
	checker *health.Checker,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		orch:      orch,
		store:     store,
		verifier:  verifier,
		checker:   checker,
		snapshots: lru.New[string, *session.Snapshot](snapshotCacheSize),
		logger:    logger.With().Str("component", "server.handlers").Logger(),
	}
}

// InboundSMS handles the carrier webhook. The carrier retries on non-2xx,
// and a retried turn would double-process the message, so this endpoint
// acknowledges with 204 no matter how the turn went.
func (h *Handlers) InboundSMS(c *fiber.Ctx) error {
	from := c.FormValue("From")
	body := c.FormValue("Body")
	if from == "" {
		h.logger.Warn().Msg("webhook without From, dropping")
		return c.SendStatus(fiber.StatusNoContent)
	}

	in := conversation.Inbound{From: from, Body: body}
	numMedia, err := strconv.Atoi(c.FormValue("NumMedia", "0"))
	if err != nil {
		numMedia = 0
	}
	if numMedia > maxMediaPerMessage {
		numMedia = maxMediaPerMessage
	}
	for i := 0; i < numMedia; i++ {
		if url := c.FormValue(fmt.Sprintf("MediaUrl%d", i)); url != "" {
			in.MediaURLs = append(in.MediaURLs, url)
		}
	}

	if err := h.orch.HandleInbound(c.Context(), in); err != nil {
		h.logger.Error().Err(err).Str("from", from).Msg("turn failed")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SharePage resolves a signed share token and serves the profile snapshot.
func (h *Handlers) SharePage(c *fiber.Ctx) error {
	if h.verifier == nil {
		return fiber.NewError(fiber.StatusNotFound, "share pages are hosted externally")
	}
	profileID, err := h.verifier.Verify(c.Params("token"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown or expired share link")
	}
	if snap, ok := h.snapshots.Get(profileID); ok {
		return c.JSON(snap)
	}
	snap, err := h.store.GetProfile(c.Context(), profileID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "profile not found")
	}
	h.snapshots.Put(profileID, snap)
	return c.JSON(snap)
}

// Liveness answers the liveness probe.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness answers the readiness probe by running all registered checks.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if h.checker != nil && !h.checker.IsReady(c.Context()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
			"checks": h.checker.Cached(),
		})
	}
	resp := fiber.Map{"status": "ready"}
	if h.checker != nil {
		resp["checks"] = h.checker.Cached()
	}
	return c.JSON(resp)
}

// HealthDetail reports the last check results without re-running them.
func (h *Handlers) HealthDetail(c *fiber.Ctx) error {
	if h.checker == nil {
		return c.JSON(fiber.Map{"checks": fiber.Map{}})
	}
	return c.JSON(fiber.Map{"checks": h.checker.Cached()})
}

// ListSessions returns all known session IDs.
func (h *Handlers) ListSessions(c *fiber.Ctx) error {
	ids, err := h.store.ListIDs(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"sessions": ids, "count": len(ids)})
}

// GetSession returns one full session.
func (h *Handlers) GetSession(c *fiber.Ctx) error {
	sess, err := h.store.Get(c.Context(), c.Params("id"))
	if err == perrors.ErrSessionMissing {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(sess)
}

// DeleteSession removes a session and its contact pointers.
func (h *Handlers) DeleteSession(c *fiber.Ctx) error {
	if err := h.store.Delete(c.Context(), c.Params("id")); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetProfile returns one committed profile snapshot.
func (h *Handlers) GetProfile(c *fiber.Ctx) error {
	snap, err := h.store.GetProfile(c.Context(), c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "profile not found")
	}
	return c.JSON(snap)
}
