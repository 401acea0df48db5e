package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

const logFlags = log.Ldate | log.Ltime

func init() {
	Setup(os.Stderr, false)
}

// Setup points every level at w. Debug output is discarded unless verbose.
func Setup(w io.Writer, verbose bool) {
	Info = log.New(w, "INFO: ", logFlags)
	Error = log.New(w, "ERROR: ", logFlags)
	Warn = log.New(w, "WARN: ", logFlags)
	debugOut := io.Discard
	if verbose {
		debugOut = w
	}
	Debug = log.New(debugOut, "DEBUG: ", logFlags)
}

// OpenFile tees log output to path in addition to os.Stderr. The returned
// file must be closed by the caller.
func OpenFile(path string, verbose bool) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	Setup(io.MultiWriter(os.Stderr, f), verbose)
	return f, nil
}
