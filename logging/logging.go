// Package logging builds the process logger: a console formatter on the
// chosen output plus an optional rotated log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rustyeddy/portmon/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05"

// FileHook writes every entry to w with its own formatter, so the file keeps
// plain text when the console is coloured.
type FileHook struct {
	formatter logrus.Formatter
	writer    io.Writer
}

func NewFileHook(w io.Writer, f logrus.Formatter) *FileHook {
	return &FileHook{writer: w, formatter: f}
}

func (h *FileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *FileHook) Fire(entry *logrus.Entry) error {
	b, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(b)
	return err
}

// Logger owns the logrus instance and the rotated file behind it.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// New configures a logger writing to out. A bad level falls back to info.
func New(cfg config.LoggingConfig, out io.Writer) (*Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			TimestampFormat:        timestampFormat,
			DisableLevelTruncation: true,
			PadLevelText:           true,
		})
	}

	lg := &Logger{Logger: l}
	if cfg.File == "" {
		return lg, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	lg.file = &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	l.AddHook(NewFileHook(lg.file, &logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
	}))
	return lg, nil
}

// Component returns an entry tagged with the component name.
func (l *Logger) Component(name string) *logrus.Entry {
	return l.WithField("component", name)
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
