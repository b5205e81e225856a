package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component names used as logger names.
const (
	ComponentCLI      = "cli"
	ComponentChecker  = "checker"
	ComponentParser   = "parser"
	ComponentStore    = "store"
	ComponentWatcher  = "watcher"
	ComponentMCP      = "mcp"
	ComponentExporter = "export"
)

// LogFormat represents the logging format.
type LogFormat string

const (
	// FormatConsole indicates human-readable console format.
	FormatConsole LogFormat = "CONSOLE"
	// FormatJSON indicates structured JSON format.
	FormatJSON LogFormat = "JSON"
)

var (
	initOnce sync.Once
	mu       sync.RWMutex
	global   = zap.NewNop()
)

func level(l string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(l)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New creates a zap logger writing to stderr. Stdout is reserved for reports.
func New(logLevel string, format LogFormat) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var enc zapcore.Encoder
	if LogFormat(strings.ToUpper(string(format))) == FormatJSON {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encCfg.ConsoleSeparator = " | "
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level(logLevel)))
	return zap.New(core, zap.AddCaller())
}

// Initialize installs the process-wide logger once; later calls are no-ops.
func Initialize(logLevel string, format LogFormat) *zap.Logger {
	initOnce.Do(func() {
		l := New(logLevel, format)
		mu.Lock()
		global = l
		mu.Unlock()
		zap.ReplaceGlobals(l)
	})
	return Get()
}

// Get returns the process-wide logger, a no-op logger before Initialize.
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// For returns a sugared logger named after a component.
func For(component string) *zap.SugaredLogger {
	return Get().Named(component).Sugar()
}

// Sync flushes buffered entries; call it on shutdown.
func Sync() {
	_ = Get().Sync()
}
