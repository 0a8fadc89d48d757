package log

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	l, _ := newLogger(zapcore.InfoLevel, false)
	logger.Store(l)
}

func newLogger(lvl zapcore.Level, json bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if json {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop(), err
	}
	return l, nil
}

// 按日志级别及格式重建全局logger，级别无法解析时回退到info并告警
// 仅在logger构建失败时返回错误，此时保留原logger
func Init(level string, json bool) (err error) {
	lvl, lvlErr := zapcore.ParseLevel(strings.ToLower(level))
	if lvlErr != nil {
		lvl = zapcore.InfoLevel
	}
	l, err := newLogger(lvl, json)
	if err != nil {
		return
	}
	if old := logger.Swap(l); old != nil {
		_ = old.Sync()
	}
	if lvlErr != nil {
		Warn("invalid log level, fallback to info", zap.String("level", level), zap.Error(lvlErr))
	}
	return
}

// 替换全局logger（测试中可传入zaptest/observer生成的logger）
func Use(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l.WithOptions(zap.AddCallerSkip(1)))
}

func L() *zap.Logger {
	return logger.Load()
}

func Debug(msg string, fields ...zap.Field) {
	logger.Load().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	logger.Load().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Load().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Load().Error(msg, fields...)
}

func Sync() error {
	return logger.Load().Sync()
}
