package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	initOnce sync.Once
	logger   *slog.Logger
	exitFunc = os.Exit

	zapOnce   sync.Once
	zapLogger *zap.Logger
)

// L returns the shared application logger, initializing it on first use.
func L() *slog.Logger {
	initOnce.Do(func() {
		logger = slog.New(newHandler())
	})
	return logger
}

func newHandler() slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(os.Getenv("AMIRI_LOG_LEVEL")),
		AddSource: strings.EqualFold(os.Getenv("AMIRI_LOG_SOURCE"), "true"),
	}

	if jsonFormat() {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	// stderr keeps CLI stdout clean for piped csv/json output.
	return slog.NewTextHandler(os.Stderr, opts)
}

func jsonFormat() bool {
	switch strings.ToLower(os.Getenv("AMIRI_LOG_FORMAT")) {
	case "json", "structured":
		return true
	}
	return false
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level <= slog.LevelDebug:
		return zapcore.DebugLevel
	case level <= slog.LevelInfo:
		return zapcore.InfoLevel
	case level <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Zap returns a zap logger at the same level and format as L. The HTTP
// request-log middleware needs it.
func Zap() *zap.Logger {
	zapOnce.Do(func() {
		zapLogger = newZap(parseLevel(os.Getenv("AMIRI_LOG_LEVEL")), jsonFormat())
	})
	return zapLogger
}

func newZap(level slog.Level, json bool) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var (
		enc  zapcore.Encoder
		sink zapcore.WriteSyncer
	)
	if json {
		enc = zapcore.NewJSONEncoder(encCfg)
		sink = zapcore.Lock(os.Stdout)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
		sink = zapcore.Lock(os.Stderr)
	}
	return zap.New(zapcore.NewCore(enc, sink, zapLevel(level)))
}

// With returns a child logger with additional attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// Fatal logs the message at error level and exits with status 1.
func Fatal(msg string, args ...any) {
	L().Error(msg, args...)
	exitFunc(1)
}
