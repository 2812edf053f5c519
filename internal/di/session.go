package di

import (
	"github.com/defval/di"

	"candy.skin/yggdrasil/internal/http"
	"candy.skin/yggdrasil/internal/session"
)

var sessionDiOptions = di.Options(
	di.Provide(newSessionsManager, di.As(new(http.SessionsManager))),
)

func newSessionsManager(
	tokens session.TokensVerifier,
	identitiesFinder session.IdentitiesFinder,
	sessions session.SessionsRepository,
) *session.Manager {
	return session.NewManager(tokens, identitiesFinder, sessions)
}
