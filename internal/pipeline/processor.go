// Package pipeline runs lines from the sources through the filter and the
// highlighter and writes the survivors to the sink.
package pipeline

import (
	"time"

	"github.com/therealutkarshpriyadarshi/logwatch/internal/filter"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/highlight"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

// Processor applies the admit and annotate steps to one line. It holds only
// immutable state and is safe for concurrent use.
type Processor struct {
	filter      *filter.Filter
	highlighter *highlight.Highlighter
	metrics     *metrics.Collector
}

// NewProcessor creates a processor. A nil filter admits everything and a nil
// highlighter leaves lines unchanged.
func NewProcessor(f *filter.Filter, h *highlight.Highlighter, m *metrics.Collector) *Processor {
	if h == nil {
		h = highlight.New(nil, nil)
	}
	return &Processor{
		filter:      f,
		highlighter: h,
		metrics:     m,
	}
}

// Process returns the rendered line and whether it should be displayed
func (p *Processor) Process(ev types.LineEvent) (string, bool) {
	start := time.Now()

	if p.filter != nil {
		if verdict := p.filter.Decide(ev.Text); verdict != filter.Admitted {
			p.metrics.LineRejected(verdict.String())
			return "", false
		}
	}

	out := p.highlighter.Annotate(ev.Text)

	p.metrics.LineAdmitted()
	p.metrics.ObserveProcess(time.Since(start).Seconds())
	return out, true
}
