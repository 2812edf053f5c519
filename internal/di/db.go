package di

import (
	"context"
	"fmt"
	"time"

	"github.com/defval/di"
	"github.com/etherlabsio/healthcheck/v2"
	"github.com/spf13/viper"

	"candy.skin/yggdrasil/internal/db"
	"candy.skin/yggdrasil/internal/db/memory"
	"candy.skin/yggdrasil/internal/db/redis"
	"candy.skin/yggdrasil/internal/identities"
	"candy.skin/yggdrasil/internal/session"
)

var dbDiOptions = di.Options(
	di.Provide(newStorage,
		di.As(new(identities.IdentitiesFinder)),
		di.As(new(identities.IdentitiesRepository)),
		di.As(new(session.SessionsRepository)),
	),
)

// Every backend must serve both the identities and the join sessions,
// so that a single storage.driver switch selects the whole persistence layer
type storage interface {
	identities.IdentitiesFinder
	identities.IdentitiesRepository
	session.SessionsRepository
}

func newStorage(container *di.Container, config *viper.Viper) (storage, error) {
	config.SetDefault("storage.driver", "redis")
	// The Yggdrasil protocol gives the joining server 5 minutes to check the join
	config.SetDefault("session.ttl", 5*time.Minute)

	driver := config.GetString("storage.driver")
	switch driver {
	case "redis":
		return newRedis(container, config)
	case "memory":
		return memory.New(config.GetDuration("session.ttl")), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

func newRedis(container *di.Container, config *viper.Viper) (*redis.Redis, error) {
	config.SetDefault("storage.redis.host", "localhost")
	config.SetDefault("storage.redis.port", 6379)
	config.SetDefault("storage.redis.poolSize", 10)

	conn, err := redis.New(
		context.Background(),
		db.NewJsonSerializer(),
		fmt.Sprintf("%s:%d", config.GetString("storage.redis.host"), config.GetInt("storage.redis.port")),
		config.GetInt("storage.redis.poolSize"),
		config.GetDuration("session.ttl"),
	)
	if err != nil {
		return nil, err
	}

	if err := container.Provide(func() *namedHealthChecker {
		return &namedHealthChecker{
			Name:    "redis",
			Checker: healthcheck.CheckerFunc(conn.Ping),
		}
	}); err != nil {
		return nil, err
	}

	return conn, nil
}
