package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrUnknownLevel  = errors.New("unknown log level")
	ErrUnknownFormat = errors.New("unknown log format")
)

// LevelTrace sits below debug. Per-frame websocket traffic is logged at it.
const LevelTrace = slog.LevelDebug - 2

var levelNames = map[string]slog.Level{
	"":        slog.LevelInfo,
	"trace":   LevelTrace,
	"debug":   slog.LevelDebug,
	"dbg":     slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
	"err":     slog.LevelError,
}

// ParseLevel resolves a LOG_LEVEL value. An empty value means info.
func ParseLevel(raw string) (slog.Level, error) {
	level, ok := levelNames[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, raw)
	}
	return level, nil
}

// Config mirrors the LOG_* settings.
type Config struct {
	Directory string
	Level     string
	// Format is "text" (the default) or "json".
	Format    string
	AddSource bool
}

// Validate reports whether Level and Format name something New can build.
func (c Config) Validate() error {
	_, err := c.handler(io.Discard)
	return err
}

func (c Config) handler(w io.Writer) (slog.Handler, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: c.AddSource}
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, c.Format)
	}
}

// New builds a logger writing to w.
func New(w io.Writer, cfg Config) (*slog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}
	h, err := cfg.handler(w)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

// Sink is the process log destination: the console plus one file per UTC day.
type Sink struct {
	Logger *slog.Logger
	// Writer fans out to the console and the file; hand it to the std log
	// package so framework output lands in the same place.
	Writer io.Writer
	Path   string
	file   *os.File
}

// Open creates cfg.Directory if needed and appends to <dir>/<yyyy-mm-dd>.log.
func Open(cfg Config, console io.Writer, now time.Time) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dir := cfg.Directory
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, now.UTC().Format(time.DateOnly)+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if console == nil {
		console = os.Stdout
	}
	w := io.MultiWriter(console, file)
	logger, err := New(w, cfg)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &Sink{Logger: logger, Writer: w, Path: path, file: file}, nil
}

func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
