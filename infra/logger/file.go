package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rotating log file written next to stdout.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	outMu sync.RWMutex
	out   io.Writer = os.Stdout
)

func output() io.Writer {
	outMu.RLock()
	defer outMu.RUnlock()
	return out
}

// SetOutput replaces the writer used by loggers created afterwards.
func SetOutput(w io.Writer) {
	outMu.Lock()
	out = w
	outMu.Unlock()
}

// EnableFile duplicates every log line into a size-rotated file. Loggers
// created before the call keep their previous writer. The returned closer
// restores stdout and closes the file.
func EnableFile(o FileOptions) (io.Closer, error) {
	if dir := filepath.Dir(o.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   o.Path,
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxBackups,
		MaxAge:     o.MaxAgeDays,
		Compress:   o.Compress,
	}
	SetOutput(io.MultiWriter(os.Stdout, lj))
	return closerFunc(func() error {
		SetOutput(os.Stdout)
		return lj.Close()
	}), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
