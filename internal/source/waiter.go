package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned by Wait after the waiter has been closed
var ErrWatcherClosed = errors.New("watcher closed")

// Waiter blocks until a followed file may have new content or may have been
// rotated. Spurious wakeups are allowed; callers always recheck the file.
type Waiter interface {
	Wait(ctx context.Context) error
	Close() error
}

// PollWaiter wakes up at a fixed interval
type PollWaiter struct {
	interval time.Duration
}

// NewPollWaiter creates a waiter that sleeps for interval
func NewPollWaiter(interval time.Duration) *PollWaiter {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollWaiter{interval: interval}
}

func (p *PollWaiter) Wait(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *PollWaiter) Close() error {
	return nil
}

// NotifyWaiter wakes up on filesystem events for one file. It watches the
// parent directory so that a file created after rotation is noticed, and
// falls back to a timer in case events are lost.
type NotifyWaiter struct {
	watcher  *fsnotify.Watcher
	target   string
	fallback time.Duration
}

// NewNotifyWaiter watches the directory containing path
func NewNotifyWaiter(path string, fallback time.Duration) (*NotifyWaiter, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	if fallback <= 0 {
		fallback = DefaultPollInterval
	}

	return &NotifyWaiter{
		watcher:  watcher,
		target:   filepath.Clean(path),
		fallback: fallback,
	}, nil
}

func (n *NotifyWaiter) Wait(ctx context.Context) error {
	timer := time.NewTimer(n.fallback)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-n.watcher.Events:
			if !ok {
				return ErrWatcherClosed
			}
			if filepath.Clean(event.Name) == n.target {
				return nil
			}

		case _, ok := <-n.watcher.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			// queue overflow and similar errors mean events were lost
			return nil

		case <-timer.C:
			return nil
		}
	}
}

func (n *NotifyWaiter) Close() error {
	return n.watcher.Close()
}
