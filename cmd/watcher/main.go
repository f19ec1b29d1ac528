package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/sanity-query/internal/app"
	"github.com/samvad-hq/sanity-query/internal/config"
	"github.com/samvad-hq/sanity-query/internal/logger"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "watcher start failed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("watcher", pflag.ContinueOnError)
	fs.String("project", "", "Sanity project id")
	fs.String("dataset", "", "Sanity dataset")
	fs.String("queries", "", "saved queries file (YAML or JSON)")
	fs.Int64("interval", 0, "poll interval in seconds")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	once := fs.Bool("once", false, "run a single pass and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadWithFlags(fs)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("watcher starting", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := app.NewWatcher(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize watcher", "error", err.Error())
		return err
	}

	if *once {
		return w.RunOnce(ctx)
	}
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("watcher run: %w", err)
	}
	return nil
}
