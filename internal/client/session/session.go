// Package session exposes the identity of the signed-in user. Tokens are
// issued elsewhere; the client only reads the owner id and expiry from them
// and keeps the token in the local store between runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/notekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/notekeeper/internal/common"
)

var (
	ErrNoSession    = errors.New("no active session")
	ErrInvalidToken = errors.New("invalid session token")
)

type Session struct {
	Token     string
	OwnerID   string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Parse extracts the subject and expiry. The signature is not checked
// here; the server verifies it on every call.
func Parse(token string) (Session, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Session{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	s := Session{Token: token, OwnerID: claims.Subject}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

type MetadataProvider interface {
	Metadata() (metadata.Repository, error)
}

// Manager persists the session token in the metadata table.
type Manager struct {
	repos MetadataProvider
	now   func() time.Time
}

func NewManager(repos MetadataProvider, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{repos: repos, now: now}
}

// Load returns the stored session, ErrNoSession when there is none or it
// has expired.
func (m *Manager) Load(ctx context.Context) (Session, error) {
	repo, err := m.repos.Metadata()
	if err != nil {
		return Session{}, err
	}
	raw, err := repo.Get(ctx, common.MetadataSessionToken)
	if err != nil {
		return Session{}, err
	}
	if len(raw) == 0 {
		return Session{}, ErrNoSession
	}
	s, err := Parse(string(raw))
	if err != nil {
		return Session{}, err
	}
	if s.Expired(m.now()) {
		return Session{}, fmt.Errorf("%w: token expired at %s", ErrNoSession, s.ExpiresAt.Format(time.RFC3339))
	}
	return s, nil
}

// Save validates token and stores it.
func (m *Manager) Save(ctx context.Context, token string) (Session, error) {
	s, err := Parse(token)
	if err != nil {
		return Session{}, err
	}
	repo, err := m.repos.Metadata()
	if err != nil {
		return s, err
	}
	if err := repo.Set(ctx, common.MetadataSessionToken, []byte(token)); err != nil {
		return s, err
	}
	return s, nil
}

func (m *Manager) Clear(ctx context.Context) error {
	repo, err := m.repos.Metadata()
	if err != nil {
		return err
	}
	return repo.Delete(ctx, common.MetadataSessionToken)
}
