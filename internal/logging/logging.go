// Package logging wires the root zap logger used throughout the engine,
// following the teacher's InitLogger/Named convention: one logger built at
// startup, handed down, and scoped per component with .Named.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls the root logger's verbosity and file rotation.
type Options struct {
	Dev      bool
	Level    string
	FilePath string // empty disables the rotating file sink
}

// New builds the root logger: a console encoder at the requested level,
// plus an optional JSON file sink rotated by lumberjack.
func New(opts Options) *zap.Logger {
	level := parseLevel(opts.Level)

	consoleEncoderCfg := zap.NewProductionEncoderConfig()
	if opts.Dev {
		consoleEncoderCfg = zap.NewDevelopmentEncoderConfig()
	}
	consoleEncoderCfg.TimeKey = "ts"
	consoleEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEncoder zapcore.Encoder
	if opts.Dev {
		consoleEncoder = zapcore.NewConsoleEncoder(consoleEncoderCfg)
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(consoleEncoderCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level),
	}

	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		fileEncoderCfg := zap.NewProductionEncoderConfig()
		fileEncoderCfg.TimeKey = "ts"
		fileEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderCfg),
			zapcore.AddSync(rotator),
			level,
		))
	}

	core := zapcore.NewTee(cores...)
	opts_ := []zap.Option{zap.AddCaller()}
	if opts.Dev {
		opts_ = append(opts_, zap.Development())
	}
	return zap.New(core, opts_...)
}

func parseLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}
