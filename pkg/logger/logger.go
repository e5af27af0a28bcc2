// Package logger provides opinionated *slog.Logger construction for cometx.
// Every logger it builds masks credentials (see DefaultRedactedKeys).
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level      slog.Level
	pretty     bool
	json       bool
	writer     io.Writer
	redactKeys []string
}

// New builds a *slog.Logger. By default it writes slog text records to
// os.Stderr at Info level.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:      slog.LevelInfo,
		writer:     os.Stderr,
		redactKeys: slices.Clone(DefaultRedactedKeys),
	}
	for _, opt := range opts {
		opt(c)
	}

	var h slog.Handler
	switch {
	case c.json:
		h = slog.NewJSONHandler(c.writer, &slog.HandlerOptions{Level: c.level})
	case c.pretty:
		h = charmlog.NewWithOptions(c.writer, charmlog.Options{
			Level:           charmLevel(c.level),
			ReportTimestamp: true,
		})
	default:
		h = slog.NewTextHandler(c.writer, &slog.HandlerOptions{Level: c.level})
	}

	return slog.New(newRedactHandler(h, c.redactKeys))
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

func charmLevel(l slog.Level) charmlog.Level {
	switch {
	case l <= slog.LevelDebug:
		return charmlog.DebugLevel
	case l >= slog.LevelError:
		return charmlog.ErrorLevel
	case l >= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.InfoLevel
	}
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
