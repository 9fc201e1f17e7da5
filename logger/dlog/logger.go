package dlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/robfig/cron/v3"
	slogmulti "github.com/samber/slog-multi"
)

// Log is the process logger. Until Setup runs it writes text to stderr.
var Log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

var mu sync.Mutex

type Config struct {
	Level slog.Level
	// Dir receives default.json and default.txt; empty keeps logging on the
	// console only.
	Dir string
	// ArchiveCron is a cron spec for moving the log files into a dated
	// directory under Dir, e.g. "@midnight". Empty disables archiving.
	ArchiveCron string
	// Console receives the pretty output, os.Stdout when nil.
	Console io.Writer
	NoColor bool
}

// Setup replaces Log with a fanout of a pretty console handler and, when
// cfg.Dir is set, JSON and text file handlers. The returned func stops the
// archive schedule and closes the files.
func Setup(cfg Config) (func() error, error) {
	opts := &slog.HandlerOptions{AddSource: true, Level: cfg.Level}

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	pretty := NewPrettyHandler(console, opts)
	if cfg.NoColor {
		pretty.colorize = false
	}
	handlers := []slog.Handler{pretty}

	var (
		files    []*rotatingFile
		archiver *Archiver
		c        *cron.Cron
	)
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		jsonFile, err := openRotating(filepath.Join(cfg.Dir, "default.json"))
		if err != nil {
			return nil, err
		}
		textFile, err := openRotating(filepath.Join(cfg.Dir, "default.txt"))
		if err != nil {
			_ = jsonFile.Close()
			return nil, err
		}
		files = []*rotatingFile{jsonFile, textFile}
		handlers = append(handlers,
			slog.NewJSONHandler(jsonFile, opts),
			slog.NewTextHandler(textFile, opts),
		)
		archiver = &Archiver{Dir: cfg.Dir, files: files}
	}

	logger := slog.New(slogmulti.Fanout(handlers...))

	if archiver != nil && cfg.ArchiveCron != "" {
		c = cron.New()
		entryID, err := c.AddFunc(cfg.ArchiveCron, archiver.Process)
		if err != nil {
			for _, f := range files {
				_ = f.Close()
			}
			return nil, fmt.Errorf("schedule log archive %q: %w", cfg.ArchiveCron, err)
		}
		c.Start()
		logger.Debug("Scheduled log archive", "entryID", entryID, "spec", cfg.ArchiveCron)
	}

	mu.Lock()
	Log = logger
	mu.Unlock()

	return func() error {
		if c != nil {
			<-c.Stop().Done()
		}
		var firstErr error
		for _, f := range files {
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}, nil
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return Log
}

// Logger returns the current process logger.
func Logger() *slog.Logger {
	return current()
}

func Info(msg string, args ...any) {
	current().Info(msg, args...)
}
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}
