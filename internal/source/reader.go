// Package source reads lines from log files, either once from start to end
// or by following the file as it grows, is truncated, or is rotated.
package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/logwatch/internal/logging"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

// ErrNotOpen is returned by Next when Open has not succeeded
var ErrNotOpen = errors.New("source not open")

// Reader produces the lines of a single file. A Reader is owned by one
// goroutine at a time.
type Reader interface {
	// Path returns the file path this reader was created for
	Path() string

	// Open acquires the file. Failure is a configuration error for the source.
	Open() error

	// Next blocks until a complete line is available. OneShot readers return
	// io.EOF after the last line; followers only return on ctx cancellation
	// or a permanent error.
	Next(ctx context.Context) (types.LineEvent, error)

	// Close releases the file and any watches
	Close() error
}

// Factory creates an unopened Reader for a path
type Factory func(path string) Reader

// Follow backends
const (
	BackendNative = "native"
	BackendTail   = "tail"
)

// FollowOptions tunes the Follow mode readers
type FollowOptions struct {
	Backend       string
	Poll          bool
	PollInterval  time.Duration
	ReopenRetries int
}

const (
	DefaultPollInterval  = 250 * time.Millisecond
	DefaultReopenRetries = 3
)

func (o FollowOptions) withDefaults() FollowOptions {
	if o.Backend == "" {
		o.Backend = BackendNative
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ReopenRetries <= 0 {
		o.ReopenRetries = DefaultReopenRetries
	}
	return o
}

// NewFactory returns a Factory building followers for the configured backend
func NewFactory(opts FollowOptions, logger *logging.Logger, m *metrics.Collector) Factory {
	opts = opts.withDefaults()
	if opts.Backend == BackendTail {
		return func(path string) Reader {
			return NewTailFollower(path, opts, logger)
		}
	}
	return func(path string) Reader {
		return NewFollower(path, opts, logger, m)
	}
}

// splitTerminator separates a raw line from its "\n" or "\r\n" terminator
func splitTerminator(raw string) (string, string) {
	switch {
	case strings.HasSuffix(raw, "\r\n"):
		return raw[:len(raw)-2], "\r\n"
	case strings.HasSuffix(raw, "\n"):
		return raw[:len(raw)-1], "\n"
	default:
		return raw, ""
	}
}
