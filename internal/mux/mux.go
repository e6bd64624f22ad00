// Package mux merges the lines of several followed sources into one stream.
package mux

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/therealutkarshpriyadarshi/logwatch/internal/logging"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/source"
	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

var (
	// ErrStarted is returned by AddSource and Start once the multiplexer runs
	ErrStarted = errors.New("multiplexer already started")

	// ErrNotStarted is returned by Next before Start
	ErrNotStarted = errors.New("multiplexer not started")
)

// DefaultBufferSize bounds the number of lines queued between readers and
// the consumer
const DefaultBufferSize = 1000

// Options configures a Multiplexer
type Options struct {
	BufferSize int
}

// Multiplexer owns a set of readers and delivers their lines in arrival
// order. Lines of one source keep their file order; no order is kept across
// sources.
type Multiplexer struct {
	factory source.Factory
	logger  *logging.Logger
	metrics *metrics.Collector

	mu      sync.RWMutex
	sources []*tracked
	started bool
	closed  bool

	lines  chan types.LineEvent
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type tracked struct {
	reader source.Reader
	state  types.SourceState
	err    error
	lines  atomic.Uint64
}

// New creates a Multiplexer that builds its readers with factory
func New(factory source.Factory, opts Options, logger *logging.Logger, m *metrics.Collector) *Multiplexer {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Multiplexer{
		factory: factory,
		logger:  logger.WithComponent("mux"),
		metrics: m,
		lines:   make(chan types.LineEvent, opts.BufferSize),
	}
}

// AddSource creates and opens a reader for path. An open failure is returned
// and the source is not added.
func (m *Multiplexer) AddSource(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrStarted
	}

	for _, s := range m.sources {
		if s.reader.Path() == path {
			m.logger.Warn().Str("source", path).Msg("Ignoring duplicate source")
			return nil
		}
	}

	reader := m.factory(path)
	if err := reader.Open(); err != nil {
		return err
	}

	m.sources = append(m.sources, &tracked{
		reader: reader,
		state:  types.SourceActive,
	})

	m.logger.Info().Str("source", path).Msg("Source added")
	return nil
}

// Start launches one reader goroutine per source. Cancelling ctx or calling
// Close stops them.
func (m *Multiplexer) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrStarted
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)

	for _, s := range m.sources {
		m.wg.Add(1)
		m.metrics.SourceStarted()
		go m.pump(ctx, s)
	}

	go func() {
		m.wg.Wait()
		close(m.lines)
	}()

	return nil
}

// Next blocks until a line is available from any source. It returns io.EOF
// once every source has finished or been dropped.
func (m *Multiplexer) Next(ctx context.Context) (types.LineEvent, error) {
	m.mu.RLock()
	started := m.started
	m.mu.RUnlock()

	if !started {
		return types.LineEvent{}, ErrNotStarted
	}

	select {
	case <-ctx.Done():
		return types.LineEvent{}, ctx.Err()
	case ev, ok := <-m.lines:
		if !ok {
			return types.LineEvent{}, io.EOF
		}
		return ev, nil
	}
}

// pump reads one source until it ends, fails or is cancelled
func (m *Multiplexer) pump(ctx context.Context, s *tracked) {
	defer m.wg.Done()

	path := s.reader.Path()
	for {
		ev, err := s.reader.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				m.finish(s, types.SourceFinished, nil)
			case ctx.Err() != nil:
				m.finish(s, types.SourceFinished, nil)
			default:
				m.logger.Error().Err(err).Str("source", path).Msg("Dropping source after permanent error")
				m.finish(s, types.SourceDropped, err)
			}
			return
		}

		s.lines.Add(1)
		m.metrics.LineRead(path)

		select {
		case m.lines <- ev:
		case <-ctx.Done():
			m.finish(s, types.SourceFinished, nil)
			return
		}
	}
}

func (m *Multiplexer) finish(s *tracked, state types.SourceState, err error) {
	m.mu.Lock()
	s.state = state
	s.err = err
	m.mu.Unlock()

	m.metrics.SourceStopped(s.reader.Path(), state == types.SourceDropped)
}

// Sources returns a snapshot of every source and its state
func (m *Multiplexer) Sources() []types.SourceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]types.SourceStatus, 0, len(m.sources))
	for _, s := range m.sources {
		status := types.SourceStatus{
			Path:  s.reader.Path(),
			State: s.state,
			Lines: s.lines.Load(),
		}
		if s.err != nil {
			status.Err = s.err.Error()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Close stops all readers and releases their files
func (m *Multiplexer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	var errs []error
	for _, s := range m.sources {
		if err := s.reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
