package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deusflow/joyfeed/internal/app"
	"github.com/deusflow/joyfeed/internal/config"
	"github.com/deusflow/joyfeed/internal/feed"
	"github.com/deusflow/joyfeed/internal/flags"
	"github.com/deusflow/joyfeed/internal/logger"
)

const usage = `usage: joyfeed [command] [flags]

commands:
  ingest    fetch, classify and store articles (default)
  feed      print one page of a user's feed as JSON
  cleanup   delete legacy and expired articles
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.Debug, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := "ingest", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	a, err := app.New(ctx, cfg, flags.Load(), log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	switch cmd {
	case "ingest":
		err = runIngest(ctx, a, cfg, log)
	case "feed":
		err = runFeed(ctx, a, args)
	case "cleanup":
		err = runCleanup(ctx, a, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		log.Error("command failed", "command", cmd, "error", err)
		a.Close()
		os.Exit(1)
	}
}

func runIngest(ctx context.Context, a *app.App, cfg *config.Config, log *slog.Logger) error {
	if cfg.EnableMonitoring {
		go func() {
			if err := a.ServeMonitoring(ctx); err != nil {
				log.Error("monitoring server failed", "error", err)
			}
		}()
	}

	if cfg.IngestSchedule != "" {
		return a.Schedule(ctx, cfg.IngestSchedule)
	}

	snap, err := a.RunIngest(ctx)
	if err != nil {
		return err
	}
	log.Info("ingestion complete",
		"processed", snap.Processed,
		"skipped", snap.Skipped,
		"blocked", snap.Blocked,
		"failed", snap.Failed,
		"duration", snap.Duration)
	return nil
}

func runFeed(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	var req feed.Request
	fs.Int64Var(&req.UserID, "user", 0, "user id")
	fs.IntVar(&req.Limit, "limit", feed.DefaultLimit, "page size")
	fs.IntVar(&req.Offset, "offset", 0, "page offset")
	fs.StringVar(&req.Type, "type", "", "article, post or empty for both")
	fs.IntVar(&req.CategoryID, "category", 0, "restrict to one category id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := a.Feed(ctx, req)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runCleanup(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	olderThan := fs.Duration("older-than", 0, "also purge articles ingested before now minus this duration, e.g. 720h")
	if err := fs.Parse(args); err != nil {
		return err
	}

	legacy, purged, err := a.Cleanup(ctx, *olderThan)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d legacy and %d expired articles at %s\n", legacy, purged, time.Now().Format(time.RFC3339))
	return nil
}
