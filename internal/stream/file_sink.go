package stream

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink writes raw output lines to a file, one per line.
// The file is flushed and closed when the stream closes.
type FileSink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	err    error
	closed bool
}

// NewFileSink creates (or truncates) the file at path.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return &FileSink{
		path: path,
		file: f,
		w:    bufio.NewWriter(f),
	}, nil
}

// AppendLine implements Sink.
func (s *FileSink) AppendLine(line Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err != nil {
		return
	}
	if _, err := s.w.WriteString(line.Text); err != nil {
		s.err = err
		return
	}
	if err := s.w.WriteByte('\n'); err != nil {
		s.err = err
	}
}

// StreamClosed implements Sink.
func (s *FileSink) StreamClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err := s.w.Flush(); err != nil && s.err == nil {
		s.err = err
	}
	if err := s.file.Close(); err != nil && s.err == nil {
		s.err = err
	}
}

// Path returns the file path.
func (s *FileSink) Path() string {
	return s.path
}

// Err returns the first write or close error.
func (s *FileSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

var _ Sink = (*FileSink)(nil)
