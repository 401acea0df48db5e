package sevenzip

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cwygoda/sts/internal/domain"
)

// ToolError is a failed 7-Zip invocation with its exit code and captured
// output.
type ToolError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed (exit %d): %v", e.Command, e.ExitCode, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Tail returns the last n non-empty lines of the captured output.
func (e *ToolError) Tail(n int) string {
	var lines []string
	for _, l := range strings.Split(e.Output, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// Archiver runs the 7-Zip command line tool.
type Archiver struct {
	binary string
	level  int
}

// New creates an Archiver for binary using compression level -mx<level>.
func New(binary string, level int) *Archiver {
	return &Archiver{binary: binary, level: level}
}

// Binary returns the executable the archiver runs.
func (a *Archiver) Binary() string {
	return a.binary
}

// Compress stores inputPath in a new password-protected archive at
// outputPath. Only the base name of the input is recorded in the archive.
func (a *Archiver) Compress(ctx context.Context, inputPath, outputPath, password string) error {
	args := []string{
		"a",
		"-t7z",
		"-mx" + strconv.Itoa(a.level),
		"-p" + password,
		"-y",
		"--",
		outputPath,
		inputPath,
	}
	return a.run(ctx, "compress", args)
}

// Extract unpacks inputPath into outputDir. The archive may be preceded by
// arbitrary bytes.
func (a *Archiver) Extract(ctx context.Context, inputPath, outputDir, password string) error {
	args := []string{
		"x",
		"-p" + password,
		"-y",
		"-o" + outputDir,
		"--",
		inputPath,
	}
	return a.run(ctx, "extract", args)
}

func (a *Archiver) run(ctx context.Context, op string, args []string) error {
	cmd := exec.CommandContext(ctx, a.binary, args...)
	// 7-Zip asks for a password on stdin when -p is rejected; never block.
	cmd.Stdin = nil
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &ToolError{
		Command:  a.binary + " " + op,
		ExitCode: code,
		Output:   string(output),
		Err:      err,
	}
}

var _ domain.ArchiveTool = (*Archiver)(nil)
