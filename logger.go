package strand

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig selects where the server logs. File output is rotated by
// size; MaxSize is in megabytes and MaxAge in days.
type LogConfig struct {
	Level      string `config:"level"`
	Console    bool   `config:"console"`
	File       string `config:"file"`
	MaxSize    int    `config:"max_size"`
	MaxBackups int    `config:"max_backups"`
	MaxAge     int    `config:"max_age"`
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Console:    true,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     7,
	}
}

// NewLogger builds a JSON logger writing to the outputs enabled in cfg.
// With no output enabled it returns zap.NewNop.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if cfg.File != "" {
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), w, level))
	}
	if cfg.Console {
		console := zapcore.Lock(os.Stdout)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), console, level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}
