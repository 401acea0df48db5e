package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cwygoda/sts/internal/adapter/sqlite"
	"github.com/cwygoda/sts/internal/config"
	"github.com/cwygoda/sts/internal/domain"
	"github.com/cwygoda/sts/internal/logger"
	"github.com/cwygoda/sts/internal/progress"
	"github.com/cwygoda/sts/internal/worker"
)

// batch scans the source directory and runs every match in direction dir.
func (a *App) batch(ctx context.Context, cfg *config.Config, dir domain.Direction) int {
	archiver, err := a.archiver(cfg)
	if err != nil {
		fmt.Fprintln(a.Err, "error:", err)
		return ExitFailure
	}
	if err := os.MkdirAll(cfg.TargetDir, 0755); err != nil {
		fmt.Fprintln(a.Err, "error: create target dir:", err)
		return ExitFailure
	}

	paths, err := a.scanner().Scan(cfg.SourceDir, cfg.Extensions, cfg.Recursive)
	if err != nil {
		fmt.Fprintln(a.Err, "error:", err)
		return ExitFailure
	}

	timeout, err := cfg.WaitTimeout()
	if err != nil {
		fmt.Fprintln(a.Err, "error: timeout:", err)
		return ExitFailure
	}

	engine := worker.NewEngine(archiver, a.thumbnails(), worker.Options{
		Layout:       cfg.Layout(),
		Password:     cfg.Password,
		MaxDimension: cfg.CompressedSize,
		Workers:      cfg.Threads,
		Timeout:      timeout,
	}, progress.New(a.Out))

	run, err := engine.Run(ctx, dir, paths)
	summary := run.Summary()
	summary.SourceDir = cfg.SourceDir
	summary.TargetDir = cfg.TargetDir
	a.record(ctx, cfg, summary)

	if errors.Is(err, domain.ErrIncomplete) {
		fmt.Fprintln(a.Out, "Timeout occurred while waiting for tasks to complete.")
		return ExitIncomplete
	}
	printSummary(a.Out, summary)
	if !summary.OK() {
		return ExitFailure
	}
	return ExitOK
}

// record stores the run in the history database. Failures are logged and
// never change the outcome of the run.
func (a *App) record(ctx context.Context, cfg *config.Config, summary domain.RunSummary) {
	if cfg.DBPath == "" {
		return
	}
	repo, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Warn.Printf("history unavailable: %v", err)
		return
	}
	defer repo.Close()

	svc := domain.NewHistoryService(repo)
	if err := svc.Record(context.WithoutCancel(ctx), summary); err != nil {
		logger.Warn.Printf("save run %s: %v", summary.ID, err)
		return
	}
	logger.Debug.Printf("run %s saved to %s", summary.ID, logger.SanitizeForLog(cfg.DBPath))
}
