package types

import (
	"fmt"
	"strings"
)

// LineEvent is a single complete line read from a source
type LineEvent struct {
	Source     string `json:"source"`
	Text       string `json:"text"`
	Terminator string `json:"terminator,omitempty"` // "\n", "\r\n" or "" for a trailing fragment
	Seq        uint64 `json:"seq"`                  // 1-based line position within the source
}

// RunMode selects between live following and a single pass over each source
type RunMode int

const (
	Follow RunMode = iota
	OneShot
)

// ParseRunMode converts a configuration string into a RunMode
func ParseRunMode(s string) (RunMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "follow":
		return Follow, nil
	case "oneshot", "cat":
		return OneShot, nil
	default:
		return Follow, fmt.Errorf("unknown run mode: %q", s)
	}
}

func (m RunMode) String() string {
	switch m {
	case OneShot:
		return "oneshot"
	default:
		return "follow"
	}
}

// SourceState is the lifecycle state of one followed source
type SourceState string

const (
	SourceActive   SourceState = "active"
	SourceFinished SourceState = "finished"
	SourceDropped  SourceState = "dropped"
)

// SourceStatus reports the state of a source owned by the multiplexer
type SourceStatus struct {
	Path  string      `json:"path"`
	State SourceState `json:"state"`
	Err   string      `json:"error,omitempty"`
	Lines uint64      `json:"lines"`
}
