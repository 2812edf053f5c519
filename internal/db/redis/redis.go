package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/mediocregopher/radix/v4"

	"candy.skin/yggdrasil/internal/db"
)

const usernameToIdentityKey = "hash:username-to-identity"
const uuidToUsernameKey = "hash:uuid-to-username"
const joinSessionKeyPrefix = "join-session:"

type Serializer interface {
	db.IdentitySerializer
	db.JoinSessionSerializer
}

type Redis struct {
	client     radix.Client
	serializer Serializer
	sessionTTL time.Duration
}

func New(ctx context.Context, serializer Serializer, addr string, poolSize int, sessionTTL time.Duration) (*Redis, error) {
	client, err := (radix.PoolConfig{Size: poolSize}).New(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Redis{
		client:     client,
		serializer: serializer,
		sessionTTL: sessionTTL,
	}, nil
}

func (r *Redis) FindIdentityByUsername(ctx context.Context, username string) (*db.Identity, error) {
	var identity *db.Identity
	err := r.client.Do(ctx, radix.WithConn("", func(ctx context.Context, conn radix.Conn) error {
		var err error
		identity, err = r.findIdentityByUsername(ctx, conn, username)

		return err
	}))

	return identity, err
}

func (r *Redis) findIdentityByUsername(ctx context.Context, conn radix.Conn, username string) (*db.Identity, error) {
	var encodedResult []byte
	err := conn.Do(ctx, radix.Cmd(&encodedResult, "HGET", usernameToIdentityKey, db.NormalizeUsername(username)))
	if err != nil {
		return nil, err
	}

	if len(encodedResult) == 0 {
		return nil, nil
	}

	return r.serializer.DeserializeIdentity(encodedResult)
}

func (r *Redis) FindIdentityByUuid(ctx context.Context, uuid string) (*db.Identity, error) {
	var identity *db.Identity
	err := r.client.Do(ctx, radix.WithConn("", func(ctx context.Context, conn radix.Conn) error {
		var err error
		identity, err = r.findIdentityByUuid(ctx, conn, uuid)

		return err
	}))

	return identity, err
}

func (r *Redis) findIdentityByUuid(ctx context.Context, conn radix.Conn, uuid string) (*db.Identity, error) {
	username, err := r.findUsernameHashKeyByUuid(ctx, conn, uuid)
	if err != nil {
		return nil, err
	}

	if username == "" {
		return nil, nil
	}

	return r.findIdentityByUsername(ctx, conn, username)
}

func (r *Redis) findUsernameHashKeyByUuid(ctx context.Context, conn radix.Conn, uuid string) (string, error) {
	var username string
	return username, conn.Do(ctx, radix.FlatCmd(&username, "HGET", uuidToUsernameKey, db.NormalizeUuid(uuid)))
}

func (r *Redis) SaveIdentity(ctx context.Context, identity *db.Identity) error {
	return r.client.Do(ctx, radix.WithConn("", func(ctx context.Context, conn radix.Conn) error {
		return r.saveIdentity(ctx, conn, identity)
	}))
}

func (r *Redis) saveIdentity(ctx context.Context, conn radix.Conn, identity *db.Identity) error {
	newUsernameHashKey := db.NormalizeUsername(identity.Username)
	existsUsernameHashKey, err := r.findUsernameHashKeyByUuid(ctx, conn, identity.Uuid)
	if err != nil {
		return err
	}

	serializedIdentity, err := r.serializer.SerializeIdentity(identity)
	if err != nil {
		return err
	}

	err = conn.Do(ctx, radix.Cmd(nil, "MULTI"))
	if err != nil {
		return err
	}

	// If user has changed username, then we must delete his old username record
	if existsUsernameHashKey != "" && existsUsernameHashKey != newUsernameHashKey {
		err = conn.Do(ctx, radix.Cmd(nil, "HDEL", usernameToIdentityKey, existsUsernameHashKey))
		if err != nil {
			return err
		}
	}

	err = conn.Do(ctx, radix.FlatCmd(nil, "HSET", uuidToUsernameKey, db.NormalizeUuid(identity.Uuid), newUsernameHashKey))
	if err != nil {
		return err
	}

	err = conn.Do(ctx, radix.FlatCmd(nil, "HSET", usernameToIdentityKey, newUsernameHashKey, serializedIdentity))
	if err != nil {
		return err
	}

	return conn.Do(ctx, radix.Cmd(nil, "EXEC"))
}

func (r *Redis) RemoveIdentityByUuid(ctx context.Context, uuid string) error {
	return r.client.Do(ctx, radix.WithConn("", func(ctx context.Context, conn radix.Conn) error {
		return r.removeIdentityByUuid(ctx, conn, uuid)
	}))
}

func (r *Redis) removeIdentityByUuid(ctx context.Context, conn radix.Conn, uuid string) error {
	username, err := r.findUsernameHashKeyByUuid(ctx, conn, uuid)
	if err != nil {
		return err
	}

	err = conn.Do(ctx, radix.Cmd(nil, "MULTI"))
	if err != nil {
		return err
	}

	err = conn.Do(ctx, radix.FlatCmd(nil, "HDEL", uuidToUsernameKey, db.NormalizeUuid(uuid)))
	if err != nil {
		return err
	}

	if username != "" {
		err = conn.Do(ctx, radix.Cmd(nil, "HDEL", usernameToIdentityKey, db.NormalizeUsername(username)))
		if err != nil {
			return err
		}
	}

	return conn.Do(ctx, radix.Cmd(nil, "EXEC"))
}

// The session key is the identity's username, so a repeated SET both
// supersedes the previous join of the same identity and restarts the TTL.
// Expiry itself is enforced by Redis via the EX argument
func (r *Redis) SaveJoinSession(ctx context.Context, session *db.JoinSession) error {
	serializedSession, err := r.serializer.SerializeSession(session)
	if err != nil {
		return err
	}

	ttlSeconds := int(r.sessionTTL.Seconds())

	return r.client.Do(ctx, radix.FlatCmd(nil, "SET", joinSessionKey(session.Username), serializedSession, "EX", ttlSeconds))
}

func (r *Redis) FindJoinSession(ctx context.Context, username string, serverId string) (*db.JoinSession, error) {
	var encodedResult []byte
	err := r.client.Do(ctx, radix.Cmd(&encodedResult, "GET", joinSessionKey(username)))
	if err != nil {
		return nil, err
	}

	if len(encodedResult) == 0 {
		return nil, nil
	}

	session, err := r.serializer.DeserializeSession(encodedResult)
	if err != nil {
		return nil, err
	}

	if session.ServerId != serverId {
		return nil, nil
	}

	return session, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Do(ctx, radix.Cmd(nil, "PING"))
}

func joinSessionKey(username string) string {
	return fmt.Sprintf("%s%s", joinSessionKeyPrefix, db.NormalizeUsername(username))
}
