// Package session implements the server-side part of the Minecraft join
// handshake. The game client presents its access token together with the
// server id it is about to enter, and the server being joined later asks
// back whether that exact pair was recorded.
package session

import (
	"context"
	"errors"

	"candy.skin/yggdrasil/internal/db"
	"candy.skin/yggdrasil/internal/security"
)

// UnknownProfileError is returned when a join is recorded with a token
// whose identity no longer exists in the storage
var UnknownProfileError = errors.New("the token doesn't belong to any known profile")

type TokensVerifier interface {
	VerifySessionToken(token string) (*security.SessionClaims, error)
}

type IdentitiesFinder interface {
	FindIdentityByUuid(ctx context.Context, uuid string) (*db.Identity, error)
}

type SessionsRepository interface {
	SaveJoinSession(ctx context.Context, session *db.JoinSession) error
	FindJoinSession(ctx context.Context, username string, serverId string) (*db.JoinSession, error)
}

func NewManager(tokens TokensVerifier, identities IdentitiesFinder, sessions SessionsRepository) *Manager {
	return &Manager{
		Tokens:     tokens,
		Identities: identities,
		Sessions:   sessions,
	}
}

type Manager struct {
	Tokens     TokensVerifier
	Identities IdentitiesFinder
	Sessions   SessionsRepository
}

// RecordJoin validates the access token and stores the join intent.
// The session is keyed by the identity's username, so a newer join
// with the same account replaces the previous one
func (m *Manager) RecordJoin(ctx context.Context, accessToken string, serverId string) error {
	claims, err := m.Tokens.VerifySessionToken(accessToken)
	if err != nil {
		return err
	}

	identity, err := m.Identities.FindIdentityByUuid(ctx, claims.Subject)
	if err != nil {
		return err
	}

	if identity == nil {
		return UnknownProfileError
	}

	return m.Sessions.SaveJoinSession(ctx, &db.JoinSession{
		AccessToken: accessToken,
		Uuid:        identity.Uuid,
		Username:    db.NormalizeUsername(identity.Username),
		ServerId:    serverId,
	})
}

// FindJoinedIdentity resolves a previously recorded join back to the full
// identity. Returns nil without an error when there is no matching join
func (m *Manager) FindJoinedIdentity(ctx context.Context, username string, serverId string) (*db.Identity, error) {
	session, err := m.Sessions.FindJoinSession(ctx, db.NormalizeUsername(username), serverId)
	if err != nil {
		return nil, err
	}

	if session == nil {
		return nil, nil
	}

	return m.Identities.FindIdentityByUuid(ctx, session.Uuid)
}
