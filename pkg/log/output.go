package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ConsoleOutput writes to stdout, or stderr when UseStderr is set.
type ConsoleOutput struct {
	UseStderr bool
	mu        sync.Mutex
}

// NewConsoleOutput returns a ConsoleOutput writing to stderr, keeping stdout
// free for command output.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{UseStderr: true} }

func (o *ConsoleOutput) Write(_ *Entry, b []byte) error {
	var w io.Writer = os.Stdout
	if o.UseStderr {
		w = os.Stderr
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := w.Write(b)
	return err
}

func (o *ConsoleOutput) Close() error { return nil }

// WriterOutput writes to an arbitrary io.Writer.
type WriterOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterOutput(w io.Writer) *WriterOutput { return &WriterOutput{w: w} }

func (o *WriterOutput) Write(_ *Entry, b []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.w.Write(b)
	return err
}

func (o *WriterOutput) Close() error { return nil }

// FileOutput appends to a file, creating parent directories as needed.
type FileOutput struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileOutput(path string) (*FileOutput, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileOutput{f: f}, nil
}

func (o *FileOutput) Write(_ *Entry, b []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.f.Write(b)
	return err
}

func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.f.Close()
}

// NullOutput discards everything.
type NullOutput struct{}

func (NullOutput) Write(*Entry, []byte) error { return nil }
func (NullOutput) Close() error               { return nil }
