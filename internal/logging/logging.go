package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// File receives a copy of every line when set. It is rotated by size.
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int

	// Console defaults to stderr.
	Console io.Writer
}

// New builds a slog logger backed by zap. The returned func flushes and
// closes the outputs.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		l, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing log level: %w", err)
		}
		level = l
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	})

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(console), level)}

	var file *lumberjack.Logger
	if opts.File != "" {
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(file), level))
	}

	core := zapcore.NewTee(cores...)
	logger := slog.New(NewContextHandler(zapslog.NewHandler(core, zapslog.WithCaller(true))))

	closer := func() error {
		// stderr cannot be synced on every platform
		_ = core.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}

	return logger, closer, nil
}

type ctxKey struct{}

// WithAttrs returns a context whose log records carry args in addition to
// any attributes ctx already had.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	prev, _ := ctx.Value(ctxKey{}).([]any)
	merged := make([]any, 0, len(prev)+len(args))
	merged = append(merged, prev...)
	merged = append(merged, args...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

type contextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h so records logged with a context pick up the
// attributes added by WithAttrs.
func NewContextHandler(h slog.Handler) slog.Handler {
	return contextHandler{Handler: h}
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if args, ok := ctx.Value(ctxKey{}).([]any); ok {
		r.Add(args...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}
