package cmd

import (
	"context"
	"strings"

	. "github.com/defval/di"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"candy.skin/yggdrasil/internal/di"
	"candy.skin/yggdrasil/internal/http"
	"candy.skin/yggdrasil/internal/otel"
	"candy.skin/yggdrasil/internal/version"
)

var RootCmd = &cobra.Command{
	Use:     "candyskind",
	Short:   "Implementation of the Minecraft authentication and session server",
	Version: version.Version(),
}

func shouldGetContainer() *Container {
	container, err := di.New()
	if err != nil {
		panic(err)
	}

	return container
}

func startServer(modules ...di.Module) error {
	container := shouldGetContainer()

	var config *viper.Viper
	if err := container.Resolve(&config); err != nil {
		return err
	}

	config.Set("modules", modules)

	var ctx context.Context
	if err := container.Resolve(&ctx); err != nil {
		return err
	}

	otelShutdown, err := otel.SetupOTelSDK(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = otelShutdown(context.Background())
	}()

	return container.Invoke(http.StartServer)
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.AutomaticEnv()
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
}
