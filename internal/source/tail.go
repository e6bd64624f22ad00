package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nxadm/tail"

	"github.com/therealutkarshpriyadarshi/logwatch/internal/logging"
	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

// TailFollower follows a file with github.com/nxadm/tail, which handles
// reopening on its own
type TailFollower struct {
	path   string
	opts   FollowOptions
	logger *logging.Logger

	tail *tail.Tail
	seq  uint64
}

// NewTailFollower creates a follower backed by nxadm/tail
func NewTailFollower(path string, opts FollowOptions, logger *logging.Logger) *TailFollower {
	if logger == nil {
		logger = logging.Nop()
	}
	return &TailFollower{
		path:   path,
		opts:   opts.withDefaults(),
		logger: logger.WithComponent("tail").WithSource(path),
	}
}

func (t *TailFollower) Path() string {
	return t.path
}

func (t *TailFollower) Open() error {
	// nxadm/tail waits for missing files unless MustExist is set
	file, err := openRegular(t.path)
	if err != nil {
		return err
	}
	file.Close()

	tl, err := tail.TailFile(t.path, tail.Config{
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Poll:      t.opts.Poll,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("tail %s: %w", t.path, err)
	}

	t.tail = tl
	return nil
}

func (t *TailFollower) Next(ctx context.Context) (types.LineEvent, error) {
	if t.tail == nil {
		return types.LineEvent{}, ErrNotOpen
	}

	for {
		select {
		case <-ctx.Done():
			return types.LineEvent{}, ctx.Err()

		case line, ok := <-t.tail.Lines:
			if !ok {
				if err := t.tail.Err(); err != nil {
					return types.LineEvent{}, fmt.Errorf("tail %s: %w", t.path, err)
				}
				return types.LineEvent{}, io.EOF
			}
			if line.Err != nil {
				t.logger.Warn().Err(line.Err).Msg("Skipping unreadable line")
				continue
			}

			text, term := line.Text, "\n"
			if strings.HasSuffix(text, "\r") {
				text, term = strings.TrimSuffix(text, "\r"), "\r\n"
			}

			t.seq++
			return types.LineEvent{
				Source:     t.path,
				Text:       text,
				Terminator: term,
				Seq:        t.seq,
			}, nil
		}
	}
}

func (t *TailFollower) Close() error {
	if t.tail == nil {
		return nil
	}
	err := t.tail.Stop()
	t.tail.Cleanup()
	t.tail = nil
	return err
}
