package di

import (
	"net/http"
	"slices"
	"strings"

	"github.com/defval/di"
	"github.com/etherlabsio/healthcheck/v2"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"

	. "candy.skin/yggdrasil/internal/http"
	"candy.skin/yggdrasil/internal/security"
)

type Module = string

const (
	ModuleYggdrasil Module = "yggdrasil"
	ModuleApi       Module = "api"
)

var handlersDiOptions = di.Options(
	di.Provide(newHandlerFactory, di.As(new(http.Handler))),
	di.Provide(newYggdrasilHandler, di.WithName(ModuleYggdrasil)),
	di.Provide(newApiHandler, di.WithName(ModuleApi)),
)

func newHandlerFactory(
	container *di.Container,
	config *viper.Viper,
) (*mux.Router, error) {
	enabledModules := config.GetStringSlice("modules")

	// gorilla.mux has no native way to combine multiple routers.
	// The hack used later in the code works for prefixes in addresses, but leads to misbehavior
	// if you set an empty prefix. Since the main application should be mounted at the root prefix,
	// we use it as the base router
	var router *mux.Router
	if slices.Contains(enabledModules, ModuleYggdrasil) {
		if err := container.Resolve(&router, di.Name(ModuleYggdrasil)); err != nil {
			return nil, err
		}
	} else {
		router = mux.NewRouter()
	}

	router.StrictSlash(true)
	router.NotFoundHandler = http.HandlerFunc(NotFoundHandler)

	if slices.Contains(enabledModules, ModuleApi) {
		var apiRouter *mux.Router
		if err := container.Resolve(&apiRouter, di.Name(ModuleApi)); err != nil {
			return nil, err
		}

		var authenticator Authenticator
		if err := container.Resolve(&authenticator); err != nil {
			return nil, err
		}

		apiRouter.Use(NewAuthenticationMiddleware(authenticator, security.IdentitiesScope))

		mount(router, "/api", apiRouter)
	}

	// Resolve health checkers last, because all the services required by the application
	// must first be initialized and each of them can publish its own checkers
	var healthCheckers []*namedHealthChecker
	if has, _ := container.Has(&healthCheckers); has {
		if err := container.Resolve(&healthCheckers); err != nil {
			return nil, err
		}

		checkersOptions := make([]healthcheck.Option, len(healthCheckers))
		for i, checker := range healthCheckers {
			checkersOptions[i] = healthcheck.WithChecker(checker.Name, checker.Checker)
		}

		router.Handle("/healthcheck", healthcheck.Handler(checkersOptions...)).Methods("GET")
	}

	return router, nil
}

func newYggdrasilHandler(
	config *viper.Viper,
	identitiesProvider IdentitiesProvider,
	sessionsManager SessionsManager,
	tokens TokensService,
	signer SignerService,
) (*mux.Router, error) {
	config.SetDefault("candyskin.server_name", "Candy Skin Server")
	config.SetDefault("candyskin.textures.host", "http://localhost")

	texturesHost := strings.TrimSuffix(config.GetString("candyskin.textures.host"), "/")

	skinDomains := config.GetStringSlice("candyskin.skin_domains")
	if len(skinDomains) == 0 {
		domain := strings.TrimPrefix(strings.TrimPrefix(texturesHost, "https://"), "http://")
		skinDomains = []string{domain}
	}

	app, err := NewYggdrasil(
		identitiesProvider,
		sessionsManager,
		tokens,
		signer,
		config.GetString("candyskin.server_name"),
		texturesHost,
		skinDomains,
	)
	if err != nil {
		return nil, err
	}

	return app.Handler(), nil
}

func newApiHandler(identitiesManager IdentitiesManager) (*mux.Router, error) {
	app, err := NewIdentitiesApi(identitiesManager)
	if err != nil {
		return nil, err
	}

	return app.Handler(), nil
}

func mount(router *mux.Router, path string, handler http.Handler) {
	router.PathPrefix(path).Handler(
		http.StripPrefix(
			strings.TrimSuffix(path, "/"),
			handler,
		),
	)
}

type namedHealthChecker struct {
	Name    string
	Checker healthcheck.Checker
}
