package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tally-dev/tally/internal/commands"
	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/logging"
)

func main() {
	_ = godotenv.Load()
	_ = logging.Setup(os.Getenv(config.EnvLogLevel), os.Getenv(config.EnvLogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
