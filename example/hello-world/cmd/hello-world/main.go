package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app := fx.New(GetApplicationOptions(ctx, config.EmbeddedConfig(embeddedConfig), envFilePath)...)
	if err := app.Err(); err != nil {
		logger.Errorf("Failed to build the application: %v", err)
		os.Exit(1)
	}
	app.Run()

	if code := exitCode.Load(); code != 0 {
		os.Exit(int(code))
	}
}
