package identities

import (
	"context"
	"errors"

	"github.com/brunomvsouza/singleflight"

	"candy.skin/yggdrasil/internal/db"
	"candy.skin/yggdrasil/internal/security"
)

var InvalidCredentialsError = errors.New("invalid username or password")

type IdentitiesFinder interface {
	FindIdentityByUsername(ctx context.Context, username string) (*db.Identity, error)
	FindIdentityByUuid(ctx context.Context, uuid string) (*db.Identity, error)
}

func NewProvider(finder IdentitiesFinder) *Provider {
	return &Provider{
		finder: finder,
	}
}

// Provider is the read side of the identities storage. Game servers tend to
// fire bursts of identical hasJoined lookups, so identical concurrent reads
// are collapsed into a single storage query
type Provider struct {
	finder IdentitiesFinder

	usernamesGroup singleflight.Group[string, *db.Identity]
	uuidsGroup     singleflight.Group[string, *db.Identity]
}

func (p *Provider) FindIdentityByUsername(ctx context.Context, username string) (*db.Identity, error) {
	key := db.NormalizeUsername(username)
	identity, err, _ := p.usernamesGroup.Do(key, func() (*db.Identity, error) {
		return p.finder.FindIdentityByUsername(ctx, key)
	})

	return identity, err
}

func (p *Provider) FindIdentityByUuid(ctx context.Context, uuid string) (*db.Identity, error) {
	key := db.NormalizeUuid(uuid)
	identity, err, _ := p.uuidsGroup.Do(key, func() (*db.Identity, error) {
		return p.finder.FindIdentityByUuid(ctx, key)
	})

	return identity, err
}

// VerifyCredentials never tells which of the two parts was wrong
func (p *Provider) VerifyCredentials(ctx context.Context, username string, password string) (*db.Identity, error) {
	identity, err := p.FindIdentityByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if identity == nil || !security.VerifyPassword(identity.PasswordHash, password) {
		return nil, InvalidCredentialsError
	}

	return identity, nil
}
