package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/therealutkarshpriyadarshi/logwatch/internal/logging"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/mux"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/source"
	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

// ErrNoSources is returned by Run when no source paths are configured
var ErrNoSources = errors.New("no sources configured")

// Options configures a Controller
type Options struct {
	Mode    types.RunMode
	Sources []string

	// Factory builds Follow readers; nil means native followers with defaults
	Factory    source.Factory
	BufferSize int

	// OnReady is called once every source is open, before the first line
	OnReady func()
}

// Controller chooses the execution strategy and feeds every line through
// the Processor into the sink
type Controller struct {
	opts      Options
	processor *Processor
	sink      io.Writer
	logger    *logging.Logger
	metrics   *metrics.Collector

	mu       sync.RWMutex
	mux      *mux.Multiplexer
	statuses []types.SourceStatus
}

// NewController creates a controller writing to sink
func NewController(opts Options, processor *Processor, sink io.Writer, logger *logging.Logger, m *metrics.Collector) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Controller{
		opts:      opts,
		processor: processor,
		sink:      sink,
		logger:    logger.WithComponent("pipeline"),
		metrics:   m,
	}
}

// Run processes lines until the sources are exhausted or ctx is cancelled.
// Any source that cannot be opened fails Run before a line is written.
func (c *Controller) Run(ctx context.Context) error {
	if len(c.opts.Sources) == 0 {
		return ErrNoSources
	}

	c.logger.Info().
		Str("mode", c.opts.Mode.String()).
		Strs("sources", c.opts.Sources).
		Msg("Starting pipeline")

	if c.opts.Mode == types.OneShot {
		return c.runOneShot(ctx)
	}
	return c.runFollow(ctx)
}

func (c *Controller) runFollow(ctx context.Context) error {
	factory := c.opts.Factory
	if factory == nil {
		factory = source.NewFactory(source.FollowOptions{}, c.logger, c.metrics)
	}

	m := mux.New(factory, mux.Options{BufferSize: c.opts.BufferSize}, c.logger, c.metrics)
	defer m.Close()

	for _, path := range c.opts.Sources {
		if err := m.AddSource(path); err != nil {
			return fmt.Errorf("failed to open source: %w", err)
		}
	}

	c.mu.Lock()
	c.mux = m
	c.mu.Unlock()

	if err := m.Start(ctx); err != nil {
		return err
	}
	c.ready()

	for {
		ev, err := m.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if ctx.Err() == nil {
					c.logger.Warn().Msg("No sources left to follow")
				}
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.emit(ev, "\n"); err != nil {
			return err
		}
	}
}

func (c *Controller) runOneShot(ctx context.Context) error {
	readers := make([]*source.OneShot, 0, len(c.opts.Sources))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()

	for _, path := range c.opts.Sources {
		r := source.NewOneShot(path)
		if err := r.Open(); err != nil {
			return fmt.Errorf("failed to open source: %w", err)
		}
		readers = append(readers, r)
	}

	c.mu.Lock()
	c.statuses = make([]types.SourceStatus, len(readers))
	for i, r := range readers {
		c.statuses[i] = types.SourceStatus{Path: r.Path(), State: types.SourceActive}
	}
	c.mu.Unlock()

	c.ready()

	for i, r := range readers {
		if err := c.drain(ctx, i, r); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// drain copies one OneShot source to the sink. A read failure drops the
// source; only sink failures are returned.
func (c *Controller) drain(ctx context.Context, idx int, r source.Reader) error {
	for {
		ev, err := r.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), ctx.Err() != nil:
				c.setStatus(idx, types.SourceFinished, nil)
			default:
				c.logger.Error().Err(err).Str("source", r.Path()).Msg("Dropping source after read error")
				c.setStatus(idx, types.SourceDropped, err)
			}
			return nil
		}

		c.metrics.LineRead(ev.Source)
		c.mu.Lock()
		c.statuses[idx].Lines++
		c.mu.Unlock()

		if err := c.emit(ev, ev.Terminator); err != nil {
			return err
		}
	}
}

func (c *Controller) setStatus(idx int, state types.SourceState, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statuses[idx].State = state
	if err != nil {
		c.statuses[idx].Err = err.Error()
	}
}

func (c *Controller) emit(ev types.LineEvent, terminator string) error {
	out, ok := c.processor.Process(ev)
	if !ok {
		return nil
	}
	if _, err := io.WriteString(c.sink, out+terminator); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (c *Controller) ready() {
	if c.opts.OnReady != nil {
		c.opts.OnReady()
	}
}

// Sources reports the state of every source once Run has opened them
func (c *Controller) Sources() []types.SourceStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.mux != nil {
		return c.mux.Sources()
	}
	return append([]types.SourceStatus(nil), c.statuses...)
}
