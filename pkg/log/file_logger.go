package log

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// RotatedSuffix names the file a full trace is rotated to.
const RotatedSuffix = ".1"

// FileLogger appends events to a CBOR trace file. It is safe for
// concurrent use.
//
// With a size limit set, the file is rotated to "<path>.1" when an event of a
// new session arrives and the file has reached the limit, so a session is
// never split across two files. One rotated file is kept.
type FileLogger struct {
	mu      sync.Mutex
	path    string
	maxSize int64

	file    *os.File
	written int64
	encoder *cbor.Encoder
	session string
	closed  bool
}

// FileOption configures a FileLogger.
type FileOption func(*FileLogger)

// WithMaxSize rotates the trace at the next session boundary once it holds
// at least n bytes. Zero or less disables rotation.
func WithMaxSize(n int64) FileOption {
	return func(l *FileLogger) { l.maxSize = n }
}

// NewFileLogger opens path for appending, creating it and its directory
// if needed.
func NewFileLogger(path string, opts ...FileOption) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	l := &FileLogger{path: path}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	l.file = f
	l.written = info.Size()
	l.encoder = NewEncoder(countingWriter{w: f, n: &l.written})
	return nil
}

// Log appends an event. Encoding errors are dropped and events after Close
// are ignored.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if event.SessionID != l.session {
		l.rotateIfFull()
		l.session = event.SessionID
	}
	if l.file == nil {
		return
	}
	_ = l.encoder.Encode(event)
}

// rotateIfFull moves a full trace aside and starts a new one. On failure the
// logger keeps appending to whatever file is open.
func (l *FileLogger) rotateIfFull() {
	if l.maxSize <= 0 || l.written < l.maxSize {
		return
	}
	if err := l.file.Close(); err != nil {
		return
	}
	l.file = nil
	_ = os.Rename(l.path, l.path+RotatedSuffix)
	_ = l.open()
}

func (l *FileLogger) size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Close closes the trace file. Calling it again is a no-op.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.file == nil {
		return errors.New("trace file was not reopened after rotation")
	}
	return l.file.Close()
}

type countingWriter struct {
	w io.Writer
	n *int64
}

func (c countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += int64(n)
	return n, err
}

var _ Logger = (*FileLogger)(nil)
