package config

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"epg/misc"
)

type LoggerConfig struct {
	Level       string `yaml:"level" validate:"required,oneof=none debug normal"`
	Destination string `yaml:"destination,omitempty" sanitize:"path_clean,assure_dir_exists_for_file" validate:"omitempty,filepath"`
	Mode        string `yaml:"mode,omitempty" validate:"omitempty,oneof=append overwrite"`
}

type LoggingConfig struct {
	FileLogger    LoggerConfig `yaml:"file"`
	ConsoleLogger LoggerConfig `yaml:"console"`
}

// consoleEncoderConfig prepares encoder settings for the given console
// stream, enabling colors when the stream supports them.
func consoleEncoderConfig(stream *os.File) zapcore.EncoderConfig {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	if EnableColorOutput(stream) {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.TimeKey = zapcore.OmitKey
	} else {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return ec
}

// consoleFloor maps configured console level name to the lowest level sent to
// stdout. Errors and above always go to stderr.
func consoleFloor(name string) (zapcore.Level, bool) {
	switch name {
	case "normal":
		return zapcore.InfoLevel, true
	case "debug":
		return zapcore.DebugLevel, true
	}
	return 0, false
}

// Prepare builds the program logger. Console output is split: info and below
// go to stdout, errors to stderr with verbose error fields trimmed. An
// optional file core captures everything at the configured level.
func (conf *LoggingConfig) Prepare() (*zap.Logger, error) {
	stdoutCore, stderrCore := zapcore.NewNopCore(), zapcore.NewNopCore()
	if floor, ok := consoleFloor(conf.ConsoleLogger.Level); ok {
		stdoutCore = zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig(os.Stdout)),
			zapcore.Lock(os.Stdout),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return floor <= lvl && lvl < zapcore.ErrorLevel
			}))
		stderrCore = zapcore.NewCore(
			errorTrimEncoder{zapcore.NewConsoleEncoder(consoleEncoderConfig(os.Stderr))},
			zapcore.Lock(os.Stderr),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel
			}))
	}

	fileCore, redirected, err := conf.prepareFileCore()
	if err != nil {
		return nil, err
	}

	log := zap.New(zapcore.NewTee(stderrCore, stdoutCore, fileCore), zap.AddCaller())
	if len(redirected) != 0 {
		log.Warn("Log file was redirected to new location", zap.String("location", redirected))
	}
	return log.Named(misc.GetAppName()), nil
}

// prepareFileCore opens the configured log file destination. When the
// destination cannot be opened a temp file is used instead and its name is
// returned so the caller can report the redirection.
func (conf *LoggingConfig) prepareFileCore() (zapcore.Core, string, error) {
	floor, ok := consoleFloor(conf.FileLogger.Level)
	if !ok {
		return zapcore.NewNopCore(), "", nil
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())

	flags := os.O_CREATE | os.O_WRONLY
	if conf.FileLogger.Mode == "append" {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(conf.FileLogger.Destination, flags, 0644)
	if err == nil {
		return zapcore.NewCore(enc, zapcore.Lock(f), zap.NewAtomicLevelAt(floor)), "", nil
	}
	if f, err = os.CreateTemp("", misc.GetAppName()+".*.log"); err == nil {
		return zapcore.NewCore(enc, zapcore.Lock(f), zap.NewAtomicLevelAt(floor)), f.Name(), nil
	}
	return nil, "", fmt.Errorf("unable to access file log destination (%s): %w", conf.FileLogger.Destination, err)
}

// errorTrimEncoder replaces error fields with their plain message so console
// output does not carry multi-line verbose representations.
type errorTrimEncoder struct {
	zapcore.Encoder
}

func (c errorTrimEncoder) Clone() zapcore.Encoder {
	return errorTrimEncoder{c.Encoder.Clone()}
}

func (c errorTrimEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	trimmed := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		if f.Type == zapcore.ErrorType {
			f.Interface = errors.New(f.Interface.(error).Error())
		}
		trimmed = append(trimmed, f)
	}
	return c.Encoder.EncodeEntry(ent, trimmed)
}
