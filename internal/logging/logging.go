// Package logging builds the diagnostic logger shared by all commands.
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ggonzalez94/contract-cli/internal/config"
)

// New returns a console logger writing to w. Debug entries are only emitted
// in verbose mode, otherwise the level is warn.
func New(verbosity config.Verbosity, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if verbosity == config.VerbosityVerbose {
		level = zapcore.DebugLevel
	}

	ec := zap.NewProductionEncoderConfig()
	ec.EncodeDuration = zapcore.StringDurationEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(level))
	return zap.New(core)
}
