package logging

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

var def atomic.Pointer[zap.Logger]

func init() {
	def.Store(build(Options{}, zapcore.AddSync(os.Stderr)))
}

func Configure(opts Options) {
	def.Store(build(opts, zapcore.AddSync(os.Stderr)))
}

// Replace installs l as the process logger and returns a func restoring the
// previous one. Tests use it with zaptest/observer.
func Replace(l *zap.Logger) func() {
	prev := def.Swap(l)
	return func() { def.Store(prev) }
}

func build(opts Options, out zapcore.WriteSyncer) *zap.Logger {
	enc := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(enc)
	} else {
		encoder = zapcore.NewConsoleEncoder(enc)
	}
	core := zapcore.NewCore(encoder, out, parseLevel(opts.Level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func parseLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func L() *zap.Logger {
	return def.Load()
}

func InitFromEnv() {
	lvl := os.Getenv("TXSERVICE_LOG_LEVEL")
	jsonStr := os.Getenv("TXSERVICE_LOG_JSON")
	json := false
	if b, err := strconv.ParseBool(strings.TrimSpace(jsonStr)); err == nil {
		json = b
	}
	Configure(Options{Level: lvl, JSON: json})
}
