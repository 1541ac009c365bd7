// Command replay re-applies billing webhook events whose first application
// failed, deleting each one that now applies cleanly.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/simple-saas-template/backend/internal/app"
)

func main() {
	limit := pflag.Int("limit", 100, "maximum number of events to replay")
	dryRun := pflag.Bool("dry-run", false, "list events without applying them")
	concurrency := pflag.Int("concurrency", 4, "events applied in parallel")
	pflag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *limit, *dryRun, *concurrency); err != nil {
		slog.Error("replay failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, limit int, dryRun bool, concurrency int) error {
	if concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	a, err := app.New(ctx)
	if err != nil {
		return err
	}

	events, err := a.Repo.ListFailedEvents(ctx, limit)
	if err != nil {
		return err
	}
	slog.Info("found failed events", "count", len(events))
	if dryRun {
		for _, event := range events {
			color.New(color.FgCyan, color.Bold).Printf("%s ", event.ID)
			fmt.Printf("%s attempts=%d ", event.Type, event.Attempts)
			color.New(color.FgRed).Println(event.Error)
		}
		return nil
	}

	var replayed, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, event := range events {
		g.Go(func() error {
			if err := a.Processor.Replay(ctx, event); err != nil {
				slog.Error("replay failed", "eventID", event.ID, "type", event.Type, "err", err)
				failed.Add(1)
				return nil
			}
			slog.Info("replayed event", "eventID", event.ID, "type", event.Type)
			replayed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("replay complete", "replayed", replayed.Load(), "failed", failed.Load())
	if failed.Load() > 0 {
		return fmt.Errorf("%d events still failing", failed.Load())
	}
	return nil
}
