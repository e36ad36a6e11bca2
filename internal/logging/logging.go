// Package logging builds the logr.Logger used across xform, backed by zap.
//
// logr verbosity V(n) maps to zap level -n, so a verbosity of 4 enables
// V(0) through V(4). Errors are always logged.
package logging

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to stderr. json selects the JSON encoder;
// otherwise a console encoder is used.
func New(verbosity int, json bool) logr.Logger {
	return NewWithWriter(os.Stderr, verbosity, json)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, verbosity int, json bool) logr.Logger {
	if verbosity < 0 {
		verbosity = 0
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	var enc zapcore.Encoder
	if json {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(zapcore.Level(-verbosity)))
	zl := zap.New(core, zap.AddStacktrace(zapcore.DPanicLevel))
	return zapr.NewLogger(zl)
}
