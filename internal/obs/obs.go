// Package obs provides a small rotating status logger. The root Store
// accepts one through its Options and holds it; no package in this module
// writes to it, including the auto-sync loop and periodic stream cleanup.
// Foreground, synchronous operations communicate through returned errors
// and results.
package obs

import (
	"io"
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger gates every call behind Enabled(): a disabled Logger is a
// no-op, not a buffered-and-dropped one.
type Logger struct {
	enabled bool
	out     io.Writer
	std     *log.Logger
}

// Options configures where a Logger's output rotates to.
type Options struct {
	Enabled    bool
	Path       string // lumberjack target file; ignored if Enabled is false
	MaxSizeMB  int    // default 10
	MaxBackups int    // default 3
	MaxAgeDays int    // default 28
	Compress   bool
}

// New returns a Logger. When opts.Enabled is false, every method is a
// no-op and no file is opened.
func New(opts Options) *Logger {
	if !opts.Enabled {
		return &Logger{enabled: false}
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 3
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 28
	}
	out := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	return &Logger{
		enabled: true,
		out:     out,
		std:     log.New(out, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// Enabled reports whether this Logger writes anything.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// Infof logs a formatted line, if enabled.
func (l *Logger) Infof(format string, args ...any) {
	if !l.Enabled() {
		return
	}
	l.std.Printf(format, args...)
}

// Errorf logs a formatted error line, if enabled.
func (l *Logger) Errorf(format string, args ...any) {
	if !l.Enabled() {
		return
	}
	l.std.Printf("error: "+format, args...)
}

// Close releases the underlying rotating file, if any was opened.
func (l *Logger) Close() error {
	if !l.Enabled() {
		return nil
	}
	if c, ok := l.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
