package di

import (
	"github.com/defval/di"

	. "candy.skin/yggdrasil/internal/http"
	"candy.skin/yggdrasil/internal/identities"
	"candy.skin/yggdrasil/internal/session"
)

var identitiesDiOptions = di.Options(
	di.Provide(newIdentitiesManager, di.As(new(IdentitiesManager))),
	di.Provide(newIdentitiesProvider,
		di.As(new(IdentitiesProvider)),
		di.As(new(session.IdentitiesFinder)),
	),
)

func newIdentitiesManager(r identities.IdentitiesRepository) *identities.Manager {
	return identities.NewManager(r)
}

func newIdentitiesProvider(finder identities.IdentitiesFinder) *identities.Provider {
	return identities.NewProvider(finder)
}
