package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Loggers default to no-ops so packages can log before Init runs (and so
// tests need no log directory).
var (
	System = zap.NewNop()
	Error  = zap.NewNop()
	Audit  = zap.NewNop()
)

func newFileLogger(path string, level zapcore.Level) (*zap.Logger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(file),
		level,
	)
	return zap.New(core), nil
}

// Init creates the log directory and the three application loggers. If file
// logging is unavailable the loggers fall back to no-ops so callers never
// nil-check.
func Init() {
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return
	}

	if l, err := newFileLogger(filepath.Join(logDir, "system.log"), zapcore.InfoLevel); err == nil {
		System = l
	}
	if l, err := newFileLogger(filepath.Join(logDir, "errors.log"), zapcore.ErrorLevel); err == nil {
		Error = l
	}
	if l, err := newFileLogger(filepath.Join(logDir, "audit.log"), zapcore.InfoLevel); err == nil {
		Audit = l
	}
}

func Sync() {
	_ = System.Sync()
	_ = Error.Sync()
	_ = Audit.Sync()
}
