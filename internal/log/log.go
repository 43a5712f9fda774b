package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	sugar      *zap.SugaredLogger
	loggerOnce sync.Once
	atomLevel  zap.AtomicLevel
)

// initLogger initializes the global zap logger to write to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		atomLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		cfg := zap.NewProductionConfig()
		cfg.Level = atomLevel
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		logger, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			logger = zap.Must(zap.NewDevelopment(zap.AddCallerSkip(1)))
		}
		sugar = logger.Sugar()
	})
}

func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		atomLevel.SetLevel(zapcore.DebugLevel)
	case LevelInfo:
		atomLevel.SetLevel(zapcore.InfoLevel)
	case LevelError:
		atomLevel.SetLevel(zapcore.ErrorLevel)
	}
}

func Debug(msg string, kv ...any) {
	initLogger()
	sugar.Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	initLogger()
	sugar.Infow(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	initLogger()
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	sugar.Errorw(msg, extended...)
}

// Sync flushes buffered log entries; call on shutdown.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
