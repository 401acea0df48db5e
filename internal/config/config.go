package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cwygoda/sts/internal/domain"
	"github.com/cwygoda/sts/internal/logger"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "sts.toml"

// Config holds the parameters of one run.
type Config struct {
	SourceDir        string   `toml:"source_dir"`
	TargetDir        string   `toml:"target_dir"`
	Password         string   `toml:"password"`
	CompressedSize   int      `toml:"compressed_size"`
	Recursive        bool     `toml:"recursive"`
	Extensions       []string `toml:"extensions"`
	Threads          int      `toml:"threads"`
	ArchiveBinary    string   `toml:"archive_binary"`
	CompressionLevel int      `toml:"compression_level"`
	Timeout          string   `toml:"timeout"`
	DBPath           string   `toml:"db_path"`
	LogFile          string   `toml:"log_file"`
	Verbose          bool     `toml:"verbose"`
}

// DefaultDBPath returns the default history database path using XDG_CACHE_HOME.
func DefaultDBPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "sts", "history.db")
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		SourceDir:        cwd,
		TargetDir:        cwd,
		Password:         "abc",
		CompressedSize:   50,
		Recursive:        false,
		Extensions:       []string{"jpg", "png", "jpeg"},
		Threads:          runtime.NumCPU(),
		CompressionLevel: 1,
		Timeout:          "24h",
		DBPath:           DefaultDBPath(),
	}
}

const fileHeader = `# sts configuration
#
# source_dir        directory scanned for images (or containers when decrypting)
# target_dir        directory receiving containers (or restored images)
# password          archive password passed to 7-Zip
# compressed_size   longer side of the visible thumbnail, in pixels
# recursive         descend into subdirectories of source_dir
# extensions        accepted file extensions, case-sensitive, without the dot
# threads           number of parallel workers
# archive_binary    7z, 7zz or 7za; empty picks the first one on PATH
# compression_level 7-Zip -mx level (0-9)
# timeout           upper bound on waiting for a batch, e.g. "24h"
# db_path           run history database; empty disables history
# log_file          also append log output to this file
# verbose           include debug output in the log

`

// Write stores cfg at path in TOML form.
func Write(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(fileHeader); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Load reads path, creating it with defaults first if it does not exist,
// then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := Write(path, cfg); err != nil {
			return nil, err
		}
		logger.Info.Printf("created default config %s", path)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, path, err)
	}
	for _, key := range md.Undecoded() {
		logger.Warn.Printf("config %s: unknown key %q", path, key.String())
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STS_SOURCE_DIR"); v != "" {
		cfg.SourceDir = v
	}
	if v := os.Getenv("STS_TARGET_DIR"); v != "" {
		cfg.TargetDir = v
	}
	if v := os.Getenv("STS_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("STS_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Threads = n
		}
	}
	if v, ok := os.LookupEnv("STS_DB"); ok {
		cfg.DBPath = v
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Threads < 1 {
		return invalid("threads must be >= 1, got %d", c.Threads)
	}
	if c.CompressedSize < 1 {
		return invalid("compressed_size must be >= 1, got %d", c.CompressedSize)
	}
	if c.Password == "" {
		return invalid("password must not be empty")
	}
	if len(c.Extensions) == 0 {
		return invalid("at least one extension is required")
	}
	for _, ext := range c.Extensions {
		if ext == "" || strings.HasPrefix(ext, ".") {
			return invalid("extension %q must be non-empty and without a leading dot", ext)
		}
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return invalid("compression_level must be within 0-9, got %d", c.CompressionLevel)
	}
	if _, err := c.WaitTimeout(); err != nil {
		return invalid("timeout: %v", err)
	}
	if c.TargetDir == "" {
		return invalid("target_dir must not be empty")
	}
	info, err := os.Stat(c.SourceDir)
	if err != nil {
		return invalid("source_dir %s: %v", c.SourceDir, err)
	}
	if !info.IsDir() {
		return invalid("source_dir %s is not a directory", c.SourceDir)
	}
	return nil
}

// WaitTimeout parses Timeout.
func (c *Config) WaitTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", c.Timeout)
	}
	return d, nil
}

// Layout returns the path layout for jobs of this configuration.
func (c *Config) Layout() domain.Layout {
	return domain.Layout{SourceDir: c.SourceDir, TargetDir: c.TargetDir}
}

// Rows returns the configuration as label/value pairs for display. The
// password is masked.
func (c *Config) Rows() [][2]string {
	archive := c.ArchiveBinary
	if archive == "" {
		archive = "auto"
	}
	history := c.DBPath
	if history == "" {
		history = "disabled"
	}
	return [][2]string{
		{"sourceDir", c.SourceDir},
		{"targetDir", c.TargetDir},
		{"password", strings.Repeat("*", len(c.Password))},
		{"compressedSize", strconv.Itoa(c.CompressedSize)},
		{"isRecursive", strconv.FormatBool(c.Recursive)},
		{"extensions", "[" + strings.Join(c.Extensions, ", ") + "]"},
		{"nThreads", strconv.Itoa(c.Threads)},
		{"archive", archive},
		{"history", history},
	}
}
