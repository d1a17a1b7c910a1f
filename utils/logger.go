package utils

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions mirrors config.LoggingConfig without importing the config package
type LogOptions struct {
	Output     string // stdout, file, both
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// NewLogWriter returns the destination for application logs. File output is
// rotated by lumberjack.
func NewLogWriter(opts LogOptions) io.Writer {
	if opts.Output == "stdout" || opts.FilePath == "" {
		return os.Stdout
	}
	rotating := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAge,
		Compress:   opts.Compress,
	}
	if opts.Output == "file" {
		return rotating
	}
	return io.MultiWriter(os.Stdout, rotating)
}

// NewComponentLogger builds a prefixed logger for a background component
func NewComponentLogger(w io.Writer, component string) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	return log.New(w, component+" ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}
