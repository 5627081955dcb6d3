// Package render turns a frozen profile snapshot into a permanent shareable
// URL. The default renderer signs the snapshot ID into a JWT and serves it
// under the agent's own public URL; an optional HTTP renderer delegates to
// an external render service instead.
package render

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/tandemhq/profile-agent/internal/session"
)

// shareTTL is how long a share token stays verifiable. Committed profiles
// are meant to be shared around for a while.
const shareTTL = 90 * 24 * time.Hour

// LocalRenderer mints share URLs of the form <publicURL>/p/<token>, where
// the token is a signed claim on the snapshot ID. No external service is
// involved; the web layer resolves the token back to the stored snapshot.
type LocalRenderer struct {
	publicURL  string
	signingKey []byte
	logger     zerolog.Logger
}

// NewLocalRenderer creates a renderer that signs share links itself.
func NewLocalRenderer(publicURL, signingKey string, logger zerolog.Logger) *LocalRenderer {
	return &LocalRenderer{
		publicURL:  strings.TrimSuffix(publicURL, "/"),
		signingKey: []byte(signingKey),
		logger:     logger.With().Str("component", "render").Logger(),
	}
}

type shareClaims struct {
	ProfileID string `json:"pid"`
	jwt.RegisteredClaims
}

// Render signs the snapshot into a share URL.
func (r *LocalRenderer) Render(_ context.Context, snap *session.Snapshot) (string, error) {
	now := time.Now().UTC()
	claims := shareClaims{
		ProfileID: snap.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "profile-agent",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(shareTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing share token: %w", err)
	}
	url := fmt.Sprintf("%s/p/%s", r.publicURL, token)
	r.logger.Debug().Str("profile_id", snap.ID).Msg("share url minted")
	return url, nil
}

// Verify resolves a share token back to the profile ID it was minted for.
func (r *LocalRenderer) Verify(token string) (string, error) {
	var claims shareClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parsing share token: %w", err)
	}
	if !parsed.Valid || claims.ProfileID == "" {
		return "", fmt.Errorf("share token is not valid")
	}
	return claims.ProfileID, nil
}
