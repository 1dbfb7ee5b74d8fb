package log

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
)

// ConsoleOutput writes formatted entries to stderr (errors) or stdout.
type ConsoleOutput struct {
	mu sync.Mutex
	// Stdout/Stderr are overridable for tests.
	Stdout io.Writer
	Stderr io.Writer
}

// NewConsoleOutput returns an Output writing to the process's stdio.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Write implements Output.
func (o *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.Stdout
	if entry.Level >= ErrorLevel {
		w = o.Stderr
	}
	if w == nil {
		w = os.Stdout
	}
	_, err := w.Write(formatted)
	return err
}

// Close implements Output.
func (o *ConsoleOutput) Close() error { return nil }

// WriterOutput writes formatted entries to an arbitrary io.Writer.
type WriterOutput struct {
	mu sync.Mutex
	W  io.Writer
}

// Write implements Output.
func (o *WriterOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.W.Write(formatted)
	return err
}

// Close implements Output.
func (o *WriterOutput) Close() error { return nil }

// stdLogAdapter forwards standard library log output to a Logger at InfoLevel.
type stdLogAdapter struct {
	logger Logger
}

func (a stdLogAdapter) Write(p []byte) (int, error) {
	a.logger.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// RedirectStdLog routes the standard library's default logger through l.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdLogAdapter{logger: l})
}

// ToStdLogger returns a *log.Logger that forwards through l.
func ToStdLogger(l Logger) *stdlog.Logger {
	return stdlog.New(stdLogAdapter{logger: l}, "", 0)
}
