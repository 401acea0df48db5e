// Package cli implements the sts command line.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cwygoda/sts/internal/adapter/fsscan"
	"github.com/cwygoda/sts/internal/adapter/sevenzip"
	"github.com/cwygoda/sts/internal/adapter/thumbnail"
	"github.com/cwygoda/sts/internal/config"
	"github.com/cwygoda/sts/internal/domain"
	"github.com/cwygoda/sts/internal/logger"
)

// Exit codes returned by Run.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitIncomplete = 2
)

// App holds the streams and collaborators of one invocation.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// NewArchiver builds the archive tool for cfg. Nil resolves 7-Zip
	// from the configuration and PATH.
	NewArchiver func(cfg *config.Config) (domain.ArchiveTool, error)
	// Thumbnails defaults to the imaging based generator.
	Thumbnails domain.ThumbnailGenerator
	// Scanner defaults to the directory walker.
	Scanner domain.FileScanner
}

// Run executes args against the process streams and returns the exit code.
func Run(ctx context.Context, args []string) int {
	app := &App{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
	return app.Run(ctx, args)
}

// Run executes args and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("sts", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	configPath := fs.String("config", config.DefaultFile, "config file path")
	var encrypt, decrypt bool
	fs.BoolVar(&encrypt, "e", false, "encrypt")
	fs.BoolVar(&encrypt, "E", false, "encrypt")
	fs.BoolVar(&decrypt, "d", false, "decrypt")
	fs.BoolVar(&decrypt, "D", false, "decrypt")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(a.Out)
			return ExitOK
		}
		return a.invalid()
	}

	rest := fs.Args()
	var cmd string
	switch {
	case encrypt && decrypt:
		return a.invalid()
	case encrypt:
		cmd = "encrypt"
	case decrypt:
		cmd = "decrypt"
	case len(rest) > 0:
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "help":
		printUsage(a.Out)
		return ExitOK
	case "", "encrypt", "decrypt":
		if len(rest) > 0 {
			return a.invalid()
		}
	case "history", "serve":
	default:
		return a.invalid()
	}

	cfg, closeLog, err := a.setup(*configPath)
	if err != nil {
		fmt.Fprintln(a.Err, "error:", err)
		return ExitFailure
	}
	defer closeLog()

	switch cmd {
	case "encrypt":
		return a.batch(ctx, cfg, domain.Encrypt)
	case "decrypt":
		return a.batch(ctx, cfg, domain.Decrypt)
	case "history":
		return a.history(ctx, cfg, rest)
	case "serve":
		return a.serve(ctx, cfg, rest)
	default:
		return a.interactive(ctx, cfg)
	}
}

// setup loads the configuration and points the loggers at their
// destination. The returned func releases the log file, if any.
func (a *App) setup(path string) (*config.Config, func(), error) {
	logger.Setup(a.Err, false)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if cfg.LogFile == "" {
		logger.Setup(a.Err, cfg.Verbose)
		return cfg, func() {}, nil
	}
	f, err := logger.OpenFile(cfg.LogFile, cfg.Verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return cfg, func() { f.Close() }, nil
}

func (a *App) archiver(cfg *config.Config) (domain.ArchiveTool, error) {
	if a.NewArchiver != nil {
		return a.NewArchiver(cfg)
	}
	bin, err := sevenzip.Resolve(cfg.ArchiveBinary, sevenzip.Candidates)
	if err != nil {
		return nil, err
	}
	logger.Debug.Printf("using archive tool %s", bin)
	return sevenzip.New(bin, cfg.CompressionLevel), nil
}

func (a *App) thumbnails() domain.ThumbnailGenerator {
	if a.Thumbnails != nil {
		return a.Thumbnails
	}
	return thumbnail.New()
}

func (a *App) scanner() domain.FileScanner {
	if a.Scanner != nil {
		return a.Scanner
	}
	return fsscan.New()
}

func (a *App) interactive(ctx context.Context, cfg *config.Config) int {
	printConfig(a.Out, cfg)

	choice, err := a.choose()
	if err != nil {
		if errors.Is(err, errInvalidChoice) {
			fmt.Fprintln(a.Out, "Invalid argument")
		} else {
			fmt.Fprintln(a.Err, "error:", err)
		}
		return ExitFailure
	}

	switch choice {
	case choiceEncrypt:
		return a.batch(ctx, cfg, domain.Encrypt)
	case choiceDecrypt:
		return a.batch(ctx, cfg, domain.Decrypt)
	default:
		return ExitOK
	}
}

func (a *App) invalid() int {
	fmt.Fprintln(a.Err, "Invalid argument")
	printUsage(a.Err)
	return ExitFailure
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "sts: hide images inside password-protected thumbnail containers")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  sts [-config sts.toml]                 show config and choose an action")
	fmt.Fprintln(w, "  sts [-config sts.toml] -e | encrypt    encrypt every image in source_dir")
	fmt.Fprintln(w, "  sts [-config sts.toml] -d | decrypt    restore every container in source_dir")
	fmt.Fprintln(w, "  sts [-config sts.toml] history [-n 10] [id]")
	fmt.Fprintln(w, "  sts [-config sts.toml] serve [-addr :8080]")
	fmt.Fprintln(w, "  sts help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  STS_SOURCE_DIR, STS_TARGET_DIR, STS_PASSWORD, STS_THREADS, STS_DB")
	fmt.Fprintln(w, "  override the config file; a .env file in the working directory is loaded first.")
}
