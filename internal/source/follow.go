package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/therealutkarshpriyadarshi/logwatch/internal/logging"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/reliability"
	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

// fingerprintSize is how many of the last bytes read are kept to detect a
// file rewritten in place past the current offset
const fingerprintSize = 64

// Follower tails a file from its end, surviving truncation and rotation
type Follower struct {
	path    string
	opts    FollowOptions
	logger  *logging.Logger
	metrics *metrics.Collector

	file    *os.File
	info    os.FileInfo
	reader  *bufio.Reader
	offset  int64
	partial []byte
	seq     uint64
	waiter  Waiter

	// tail holds the bytes just before offset; scratch is reused to compare
	tail    []byte
	scratch []byte

	missing rate.Sometimes
}

// NewFollower creates a follower for path
func NewFollower(path string, opts FollowOptions, logger *logging.Logger, m *metrics.Collector) *Follower {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Follower{
		path:    path,
		opts:    opts.withDefaults(),
		logger:  logger.WithComponent("follower").WithSource(path),
		metrics: m,
		missing: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

func (f *Follower) Path() string {
	return f.path
}

// Open opens the file and positions it at the current end, so existing
// content is not replayed
func (f *Follower) Open() error {
	file, err := openRegular(f.path)
	if err != nil {
		return err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat %s: %w", f.path, err)
	}

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return fmt.Errorf("seek %s: %w", f.path, err)
	}

	f.file = file
	f.info = info
	f.offset = offset
	f.reader = bufio.NewReader(file)
	f.waiter = f.newWaiter()
	f.loadFingerprint()

	f.logger.Debug().Int64("offset", offset).Msg("Following from end of file")
	return nil
}

func (f *Follower) newWaiter() Waiter {
	if f.opts.Poll {
		return NewPollWaiter(f.opts.PollInterval)
	}
	w, err := NewNotifyWaiter(f.path, f.opts.PollInterval)
	if err != nil {
		f.logger.Warn().Err(err).Msg("Filesystem notifications unavailable, falling back to polling")
		return NewPollWaiter(f.opts.PollInterval)
	}
	return w
}

// Next returns the next complete line. Partial content is held back until
// its newline arrives.
func (f *Follower) Next(ctx context.Context) (types.LineEvent, error) {
	if f.file == nil {
		return types.LineEvent{}, ErrNotOpen
	}

	for {
		// Only when the next read goes to the file, so buffered lines of the
		// old content are still delivered
		if f.reader.Buffered() == 0 {
			if err := f.verifyPosition(); err != nil {
				return types.LineEvent{}, err
			}
		}

		chunk, err := f.reader.ReadBytes('\n')
		if len(chunk) > 0 {
			f.offset += int64(len(chunk))
			f.partial = append(f.partial, chunk...)
			f.remember(chunk)
		}
		if err == nil {
			return f.emit(), nil
		}
		if !errors.Is(err, io.EOF) {
			return types.LineEvent{}, fmt.Errorf("read %s: %w", f.path, err)
		}

		if err := f.waiter.Wait(ctx); err != nil {
			return types.LineEvent{}, err
		}
		if err := f.checkRotation(ctx); err != nil {
			return types.LineEvent{}, err
		}
	}
}

// loadFingerprint reads the bytes preceding the start offset. A failure
// leaves the fingerprint empty, which disables the check until bytes are read.
func (f *Follower) loadFingerprint() {
	f.tail = f.tail[:0]
	n := min(f.offset, fingerprintSize)
	if n == 0 {
		return
	}

	buf := make([]byte, n)
	if _, err := f.file.ReadAt(buf, f.offset-n); err != nil {
		f.logger.Debug().Err(err).Msg("Could not read file fingerprint")
		return
	}
	f.tail = buf
}

// remember keeps the last fingerprintSize bytes consumed
func (f *Follower) remember(chunk []byte) {
	f.tail = append(f.tail, chunk...)
	if n := len(f.tail); n > fingerprintSize {
		f.tail = append(f.tail[:0], f.tail[n-fingerprintSize:]...)
	}
}

// verifyPosition rewinds when the bytes before offset are no longer the ones
// that were read: the file was truncated and written again, possibly past the
// old offset, between two reads
func (f *Follower) verifyPosition() error {
	if len(f.tail) == 0 {
		return nil
	}

	if cap(f.scratch) < len(f.tail) {
		f.scratch = make([]byte, fingerprintSize)
	}
	buf := f.scratch[:len(f.tail)]

	_, err := f.file.ReadAt(buf, f.offset-int64(len(buf)))
	switch {
	case errors.Is(err, io.EOF):
		return f.rewind()
	case err != nil:
		return fmt.Errorf("read %s: %w", f.path, err)
	case !bytes.Equal(buf, f.tail):
		return f.rewind()
	}
	return nil
}

func (f *Follower) emit() types.LineEvent {
	text, term := splitTerminator(string(f.partial))
	f.partial = f.partial[:0]
	f.seq++
	return types.LineEvent{
		Source:     f.path,
		Text:       text,
		Terminator: term,
		Seq:        f.seq,
	}
}

// checkRotation compares the path on disk with the open handle. A missing
// path is transient; any other stat failure is permanent.
func (f *Follower) checkRotation(ctx context.Context) error {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			f.warnMissing()
			return nil
		}
		return fmt.Errorf("stat %s: %w", f.path, err)
	}

	if !os.SameFile(f.info, info) {
		return f.reopen(ctx)
	}

	if info.Size() < f.offset {
		return f.rewind()
	}
	return nil
}

func (f *Follower) warnMissing() {
	f.missing.Do(func() {
		f.logger.Warn().Msg("Source missing, waiting for it to reappear")
	})
}

// reopen switches to the file now at path and reads it from the start
func (f *Follower) reopen(ctx context.Context) error {
	var (
		file *os.File
		info os.FileInfo
	)

	err := reliability.Retry(ctx, reliability.RetryConfig{
		MaxRetries:     f.opts.ReopenRetries,
		InitialBackoff: f.opts.PollInterval / 4,
		MaxBackoff:     f.opts.PollInterval,
		Retryable: func(err error) bool {
			return errors.Is(err, fs.ErrNotExist)
		},
	}, func(ctx context.Context) error {
		nf, err := os.Open(f.path)
		if err != nil {
			return err
		}
		ni, err := nf.Stat()
		if err != nil {
			nf.Close()
			return err
		}
		file, info = nf, ni
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, fs.ErrNotExist) {
			f.warnMissing()
			return nil
		}
		return fmt.Errorf("reopen %s: %w", f.path, err)
	}

	f.file.Close()
	f.file = file
	f.info = info
	f.offset = 0
	f.partial = f.partial[:0]
	f.tail = f.tail[:0]
	f.reader.Reset(file)

	f.metrics.SourceReopened(f.path, "replaced")
	f.logger.Info().Msg("Source replaced, reading new file from the start")
	return nil
}

// rewind restarts a truncated file from its first byte
func (f *Follower) rewind() error {
	if _, err := f.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s: %w", f.path, err)
	}

	f.offset = 0
	f.partial = f.partial[:0]
	f.tail = f.tail[:0]
	f.reader.Reset(f.file)

	f.metrics.SourceReopened(f.path, "truncated")
	f.logger.Info().Msg("Source truncated, reading from the start")
	return nil
}

func (f *Follower) Close() error {
	var err error
	if f.waiter != nil {
		err = f.waiter.Close()
		f.waiter = nil
	}
	if f.file != nil {
		if cerr := f.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		f.file = nil
	}
	return err
}
