package sevenzip

import (
	"errors"
	"fmt"
	"os/exec"
)

// Candidates are the 7-Zip executables tried in order when none is
// configured.
var Candidates = []string{"7z", "7zz", "7za"}

// ErrNotFound is returned when no 7-Zip executable is on PATH.
var ErrNotFound = errors.New("no 7-Zip executable found")

// Resolve returns the configured binary if set, otherwise the first of
// candidates found on PATH.
func Resolve(configured string, candidates []string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("archive binary %q: %w", configured, err)
		}
		return path, nil
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w (tried %v)", ErrNotFound, candidates)
}
