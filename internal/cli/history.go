package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	httpAdapter "github.com/cwygoda/sts/internal/adapter/http"
	"github.com/cwygoda/sts/internal/adapter/sqlite"
	"github.com/cwygoda/sts/internal/config"
	"github.com/cwygoda/sts/internal/domain"
	"github.com/cwygoda/sts/internal/logger"
)

var errHistoryDisabled = errors.New("history is disabled (db_path is empty)")

func openHistory(cfg *config.Config) (*domain.HistoryService, func(), error) {
	if cfg.DBPath == "" {
		return nil, nil, errHistoryDisabled
	}
	repo, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return domain.NewHistoryService(repo), func() { repo.Close() }, nil
}

func (a *App) history(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(a.Err)
	limit := fs.Int("n", 10, "number of runs to list")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitFailure
	}
	if fs.NArg() > 1 {
		return a.invalid()
	}

	svc, closeFn, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintln(a.Err, "error:", err)
		return ExitFailure
	}
	defer closeFn()

	if fs.NArg() == 1 {
		run, err := svc.Get(ctx, fs.Arg(0))
		if err != nil {
			fmt.Fprintln(a.Err, "error:", err)
			return ExitFailure
		}
		printRun(a.Out, *run)
		return ExitOK
	}

	runs, err := svc.Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintln(a.Err, "error:", err)
		return ExitFailure
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.Out, "no runs recorded")
		return ExitOK
	}
	for _, run := range runs {
		fmt.Fprintln(a.Out, runLine(run))
	}
	return ExitOK
}

// runLine renders one run for listings.
func runLine(run domain.RunSummary) string {
	status := "ok"
	switch {
	case run.Incomplete:
		status = "incomplete"
	case run.Failed > 0:
		status = "failed"
	}
	return fmt.Sprintf("%s  %s  %-7s  sum:%d success:%d failure:%d  %s",
		run.ID,
		run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		run.Direction,
		run.Total, run.Succeeded, run.Failed,
		status,
	)
}

func printRun(w io.Writer, run domain.RunSummary) {
	fmt.Fprintln(w, runLine(run))
	fmt.Fprintf(w, "source: %s\ntarget: %s\n", run.SourceDir, run.TargetDir)
	printSummary(w, run)
}

func (a *App) serve(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.Err)
	addr := fs.String("addr", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitFailure
	}
	if fs.NArg() > 0 {
		return a.invalid()
	}

	svc, closeFn, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintln(a.Err, "error:", err)
		return ExitFailure
	}
	defer closeFn()

	srv := httpAdapter.NewServer(svc, *addr)
	errCh := make(chan error, 1)
	logger.Info.Printf("HTTP server listening on %s", srv.Addr())
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error.Printf("HTTP server error: %v", err)
			return ExitFailure
		}
		return ExitOK
	case <-ctx.Done():
	}

	logger.Info.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("HTTP server shutdown error: %v", err)
		return ExitFailure
	}
	return ExitOK
}
