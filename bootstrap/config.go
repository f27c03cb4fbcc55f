package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"mongograph/config"
	"mongograph/storage"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger initializes the zap logger with colored console output.
// The level can be changed later through the returned AtomicLevel.
func InitLogger() (*zap.Logger, *zap.SugaredLogger, zap.AtomicLevel) {
	// Create a colored console encoder config
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), level
}

// InitConfig loads the application configuration and applies the configured log level.
func InitConfig(sugar *zap.SugaredLogger, level zap.AtomicLevel) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: Failed to load config: %v\n", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Log.Level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	if viper.ConfigFileUsed() == "" {
		sugar.Info("No config file found, using defaults and env vars")
	}

	sugar.Infow("Config loaded",
		"mongodb_target", storage.RedactURI(cfg.MongoDB.URI),
		"mongodb_database", cfg.MongoDB.Database,
		"connect_timeout", cfg.MongoDB.ConnectTimeout,
		"api_addr", cfg.Addr())

	return cfg, nil
}
