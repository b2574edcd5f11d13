// Package logger builds the zap loggers used by the command binaries:
// console output for interactive runs, plus an optional per-run log file.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Debug lowers the level to Debug and switches to development encoding.
	Debug bool
	// Dir, when set, adds a JSON log file named <run>_<date>.log in Dir.
	Dir string
	// Run names the log file, typically the strategy or command name.
	Run string
}

// New builds the process logger. The returned close function flushes
// buffered entries and must be called before exit.
func New(opts Options) (*zap.Logger, func(), error) {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	cores := []zapcore.Core{consoleCore}
	var file *os.File
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory %s: %w", opts.Dir, err)
		}
		name := opts.Run
		if name == "" {
			name = "run"
		}
		path := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", name, time.Now().Format("2006-01-02")))
		var err error
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.Lock(file),
			level,
		))
	}

	log := zap.New(zapcore.NewTee(cores...))
	closeFn := func() {
		_ = log.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return log, closeFn, nil
}
