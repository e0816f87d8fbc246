package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"saaskit/internal/config"
	"saaskit/internal/console"
	"saaskit/internal/platform/logging"
	"saaskit/internal/session"
	"saaskit/internal/supabase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	var logger *zap.Logger
	build := func(ctx context.Context) (*console.App, error) {
		cfg, err := config.LoadClient()
		if err != nil {
			return nil, err
		}
		logger = logging.NewConsole(cfg.LogLevel)

		return console.New(ctx, console.Deps{
			Provider:    supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey),
			Persister:   session.NewFilePersister(cfg.SessionFile),
			APIURL:      cfg.APIURL,
			Out:         os.Stdout,
			Locale:      cfg.Locale,
			RedirectURL: cfg.RedirectURL,
			Logger:      logger,
		}), nil
	}

	err := console.NewRootCommand(build).ExecuteContext(ctx)
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "saasctl: %v\n", err)
		os.Exit(1)
	}
}
