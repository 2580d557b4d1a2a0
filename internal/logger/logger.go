// Package logger is a small zap facade matching the call surface the rest
// of the module expects: leveled logging with an optional rotated file
// sink, swappable at runtime.
package logger

import (
	"os"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type Level int8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger wraps a *zap.SugaredLogger behind an atomic level so SetLevel
// can be applied without rebuilding the core.
type Logger struct {
	mu    sync.Mutex
	sugar *zap.SugaredLogger
	atom  zap.AtomicLevel
}

// New builds a Logger writing to w at the given starting level.
func New(w zapcore.WriteSyncer, level Level) *Logger {
	atom := zap.NewAtomicLevelAt(level.zapLevel())
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), w, atom)
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{sugar: zl.Sugar(), atom: atom}
}

// NewProductionRotateByTime builds a file sink for New that rotates once
// per day, keeping a week of history.
func NewProductionRotateByTime(path string) zapcore.WriteSyncer {
	w, err := rotatelogs.New(
		path+".%Y%m%d",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return zapcore.AddSync(defaultStderr{})
	}
	return zapcore.AddSync(w)
}

// NewSizeRotated builds a file sink for New that rotates by size, the
// alternative strategy a deployment may select instead of
// NewProductionRotateByTime.
func NewSizeRotated(path string, maxSizeMB, maxBackups, maxAgeDays int) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	})
}

type defaultStderr struct{}

func (defaultStderr) Write(p []byte) (int, error) { return os.Stderr.Write(p) }
func (defaultStderr) Sync() error                 { return nil }

var (
	defaultMu  sync.Mutex
	defaultLog *Logger = New(zapcore.AddSync(defaultStderr{}), InfoLevel)
)

// ReplaceDefault swaps the package-level default logger.
func ReplaceDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLog = l
}

func SetLevel(level Level) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLog.atom.SetLevel(level.zapLevel())
}

func Sync() {
	defaultMu.Lock()
	l := defaultLog
	defaultMu.Unlock()
	_ = l.sugar.Sync()
}

func Debug(args ...interface{})                  { get().Debug(args...) }
func Debugf(format string, args ...interface{})  { get().Debugf(format, args...) }
func Info(args ...interface{})                   { get().Info(args...) }
func Infof(format string, args ...interface{})   { get().Infof(format, args...) }
func Warn(args ...interface{})                   { get().Warn(args...) }
func Warnf(format string, args ...interface{})   { get().Warnf(format, args...) }
func Error(args ...interface{})                  { get().Error(args...) }
func Errorf(format string, args ...interface{})  { get().Errorf(format, args...) }

func get() *zap.SugaredLogger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLog.sugar
}
