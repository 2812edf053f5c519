// Package memory provides a storage backend that holds everything in the
// process memory. Join sessions still honor the storage-enforced TTL
// contract: expired records become unreadable even before the cache's
// garbage collector removes them.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"candy.skin/yggdrasil/internal/db"
)

type Memory struct {
	mu                   sync.RWMutex
	identitiesByUsername map[string]*db.Identity
	usernameByUuid       map[string]string

	sessions *ttlcache.Cache[string, *db.JoinSession]
	gcOnce   sync.Once
}

func New(sessionTTL time.Duration) *Memory {
	return &Memory{
		identitiesByUsername: make(map[string]*db.Identity),
		usernameByUuid:       make(map[string]string),
		sessions: ttlcache.New[string, *db.JoinSession](
			ttlcache.WithTTL[string, *db.JoinSession](sessionTTL),
			ttlcache.WithDisableTouchOnHit[string, *db.JoinSession](),
		),
	}
}

func (m *Memory) FindIdentityByUsername(ctx context.Context, username string) (*db.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	identity, ok := m.identitiesByUsername[db.NormalizeUsername(username)]
	if !ok {
		return nil, nil
	}

	result := *identity

	return &result, nil
}

func (m *Memory) FindIdentityByUuid(ctx context.Context, uuid string) (*db.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	username, ok := m.usernameByUuid[db.NormalizeUuid(uuid)]
	if !ok {
		return nil, nil
	}

	identity := *m.identitiesByUsername[username]

	return &identity, nil
}

func (m *Memory) SaveIdentity(ctx context.Context, identity *db.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := *identity
	uuid := db.NormalizeUuid(identity.Uuid)
	newUsernameKey := db.NormalizeUsername(identity.Username)
	if existsUsernameKey, ok := m.usernameByUuid[uuid]; ok && existsUsernameKey != newUsernameKey {
		delete(m.identitiesByUsername, existsUsernameKey)
	}

	m.usernameByUuid[uuid] = newUsernameKey
	m.identitiesByUsername[newUsernameKey] = &record

	return nil
}

func (m *Memory) RemoveIdentityByUuid(ctx context.Context, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	normalizedUuid := db.NormalizeUuid(uuid)
	if username, ok := m.usernameByUuid[normalizedUuid]; ok {
		delete(m.identitiesByUsername, username)
		delete(m.usernameByUuid, normalizedUuid)
	}

	return nil
}

// The session key is the identity's username, so a repeated Set both
// supersedes the previous join of the same identity and restarts the TTL.
// ttlcache serializes writes to the same cache, which gives the required
// "exactly one surviving record per identity" guarantee for concurrent joins
func (m *Memory) SaveJoinSession(ctx context.Context, session *db.JoinSession) error {
	record := *session
	m.sessions.Set(db.NormalizeUsername(session.Username), &record, ttlcache.DefaultTTL)
	m.startGcOnce()

	return nil
}

func (m *Memory) FindJoinSession(ctx context.Context, username string, serverId string) (*db.JoinSession, error) {
	item := m.sessions.Get(db.NormalizeUsername(username))
	// Don't check item.IsExpired() since Get function is already did this check
	if item == nil {
		return nil, nil
	}

	session := *item.Value()
	if session.ServerId != serverId {
		return nil, nil
	}

	return &session, nil
}

func (m *Memory) StopGC() {
	// If you call the Stop() on a non-started GC, the process will hang trying to close the uninitialized channel
	m.startGcOnce()
	m.sessions.Stop()
}

func (m *Memory) startGcOnce() {
	m.gcOnce.Do(func() {
		go m.sessions.Start()
	})
}
