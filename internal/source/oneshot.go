package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

// OneShot reads a file from start to end once
type OneShot struct {
	path   string
	file   *os.File
	reader *bufio.Reader
	seq    uint64
	done   bool
}

// NewOneShot creates a OneShot reader for path
func NewOneShot(path string) *OneShot {
	return &OneShot{path: path}
}

func (o *OneShot) Path() string {
	return o.path
}

// Open opens the file for reading from its first byte
func (o *OneShot) Open() error {
	file, err := openRegular(o.path)
	if err != nil {
		return err
	}
	o.file = file
	o.reader = bufio.NewReader(file)
	return nil
}

// Next returns the next line with its original terminator. A final fragment
// without a newline is returned with an empty Terminator before io.EOF.
func (o *OneShot) Next(ctx context.Context) (types.LineEvent, error) {
	if err := ctx.Err(); err != nil {
		return types.LineEvent{}, err
	}
	if o.reader == nil {
		return types.LineEvent{}, ErrNotOpen
	}
	if o.done {
		return types.LineEvent{}, io.EOF
	}

	raw, err := o.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return types.LineEvent{}, fmt.Errorf("read %s: %w", o.path, err)
		}
		o.done = true
		if raw == "" {
			return types.LineEvent{}, io.EOF
		}
	}

	text, term := splitTerminator(raw)
	o.seq++
	return types.LineEvent{
		Source:     o.path,
		Text:       text,
		Terminator: term,
		Seq:        o.seq,
	}, nil
}

func (o *OneShot) Close() error {
	if o.file == nil {
		return nil
	}
	err := o.file.Close()
	o.file = nil
	o.reader = nil
	return err
}

// openRegular opens path and rejects directories
func openRegular(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("open %s: is a directory", path)
	}
	return file, nil
}
