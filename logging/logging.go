// Package logging builds the process logger: text on stderr, plus JSON lines in a file when
// one is configured.
package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures New.
type Options struct {
	Debug bool
	// File, when set, receives every record as JSON. It is appended to.
	File string
	// Terminal is where the text handler writes; os.Stderr when nil.
	Terminal io.Writer
}

// Level is shared by every handler New creates, so the verbosity can change at runtime.
var Level = new(slog.LevelVar)

// New returns the logger and a function that closes the log file, if any.
func New(opts Options) (*slog.Logger, func() error, error) {
	if opts.Debug {
		Level.Set(slog.LevelDebug)
	} else {
		Level.Set(slog.LevelInfo)
	}

	terminal := opts.Terminal
	if terminal == nil {
		terminal = os.Stderr
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(terminal, &slog.HandlerOptions{Level: Level}),
	}

	closer := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: Level}))
		closer = f.Close
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

// Setup builds the logger with New and installs it as the slog default.
func Setup(opts Options) (func() error, error) {
	logger, closer, err := New(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}
