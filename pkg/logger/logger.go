package logger

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

/*
New. production zap logger. level (debug|info|warn|error) and encoding (console|json) come from viper:
config keys log_level / log_format, env ROADLENGTH_LOG_LEVEL / ROADLENGTH_LOG_FORMAT,
or the plain LOG_LEVEL / LOG_FORMAT.
*/
func New() (*zap.Logger, error) {
	_ = viper.BindEnv("log_level", "ROADLENGTH_LOG_LEVEL", "LOG_LEVEL")
	_ = viper.BindEnv("log_format", "ROADLENGTH_LOG_FORMAT", "LOG_FORMAT")
	viper.SetDefault("log_format", "console")

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Encoding = "console"
	if strings.EqualFold(viper.GetString("log_format"), "json") {
		cfg.Encoding = "json"
	}

	if lvl := viper.GetString("log_level"); lvl != "" {
		level, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	return cfg.Build()
}
