package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/config"
)

const service = "invoicing-bot"

// New builds the process logger from the log section. Dev mode forces the
// console writer and disables sampling.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	return newLogger(os.Stdout, cfg, dev)
}

func newLogger(w io.Writer, cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if dev && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	out := w
	if dev || strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Str("service", service).Logger()

	if cfg.Sampling && !dev {
		// warnings and errors are never sampled
		logger = logger.Sample(zerolog.LevelSampler{
			TraceSampler: &zerolog.BasicSampler{N: 100},
			DebugSampler: &zerolog.BasicSampler{N: 100},
			InfoSampler:  &zerolog.BurstSampler{Burst: 100, Period: time.Second, NextSampler: &zerolog.BasicSampler{N: 100}},
		})
	}
	return &logger
}

type ctxKey int

const (
	traceIDKey ctxKey = iota
	chatIDKey
	tgIDKey
)

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func WithChatID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, chatIDKey, id)
}

func WithTgID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, tgIDKey, id)
}

// TraceID returns the trace id stored in ctx, if any.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// With returns base enriched with the trace_id, chat_id and tg_id found in ctx.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	l := base.With()
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		l = l.Str("trace_id", v)
	}
	if v, ok := ctx.Value(chatIDKey).(int64); ok {
		l = l.Int64("chat_id", v)
	}
	if v, ok := ctx.Value(tgIDKey).(int64); ok {
		l = l.Int64("tg_id", v)
	}
	logger := l.Logger()
	return &logger
}

// TraceDuration logs the elapsed time of a call at TRACE level.
// Usage: defer logging.TraceDuration(logger, "BusinessUC.CreateClient")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	if logger.GetLevel() > zerolog.TraceLevel {
		return func() {}
	}
	start := time.Now()
	return func() {
		logger.Trace().Str("method", name).Dur("duration", time.Since(start)).Msg("call finished")
	}
}

// Redact masks customer data (emails, phones, proof references) outside dev mode.
// Emails keep their domain; other values keep their first and last two runes.
func Redact(s string, dev bool) string {
	if dev || s == "" {
		return s
	}
	if at := strings.LastIndexByte(s, '@'); at > 0 {
		return string([]rune(s)[0]) + "***" + s[at:]
	}
	r := []rune(s)
	if len(r) <= 6 {
		return "***"
	}
	return string(r[:2]) + "***" + string(r[len(r)-2:])
}
