package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls the root logger.
type Options struct {
	Level      string
	Format     string // "text" or "json"
	Categories map[string]string
	Output     io.Writer
}

var (
	mu         sync.RWMutex
	root       = zerolog.New(os.Stderr).With().Timestamp().Logger()
	categories = map[string]zerolog.Level{}
)

// Setup replaces the root logger. Categories listed in opts.Categories get
// their own level; every other category inherits opts.Level.
func Setup(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(opts.Format, "text") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	levels := make(map[string]zerolog.Level, len(opts.Categories))
	for name, lvl := range opts.Categories {
		levels[strings.ToLower(name)] = ParseLevel(lvl)
	}

	mu.Lock()
	root = zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
	categories = levels
	mu.Unlock()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// For returns a logger tagged with category. A per-category level, when
// configured, takes precedence over the root level.
func For(category string) *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	l := root.With().Str("category", category).Logger()
	if lvl, ok := categories[strings.ToLower(category)]; ok {
		l = l.Level(lvl)
	}
	return &l
}

// Ctx returns the request-scoped logger stored in ctx, or the category
// logger when the context carries none.
func Ctx(ctx context.Context, category string) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		sub := l.With().Str("category", category).Logger()
		mu.RLock()
		if lvl, ok := categories[strings.ToLower(category)]; ok {
			sub = sub.Level(lvl)
		}
		mu.RUnlock()
		return &sub
	}
	return For(category)
}
