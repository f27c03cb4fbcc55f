package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"

	"mongograph/config"
	"mongograph/storage"

	"go.uber.org/zap"
)

// stderr receives the fatal startup banners
var stderr io.Writer = os.Stderr

// ConnectOptionsFromConfig maps configuration onto a connection attempt
func ConnectOptionsFromConfig(cfg *config.Config) storage.ConnectOptions {
	return storage.ConnectOptions{
		URI:         cfg.MongoDB.URI,
		Database:    cfg.MongoDB.Database,
		Timeout:     cfg.MongoDB.ConnectTimeout,
		MaxPoolSize: cfg.MongoDB.MaxPoolSize,
		AppName:     cfg.MongoDB.AppName,
	}
}

// InitMongoDB makes the single startup connection attempt. It blocks until the
// attempt succeeds, fails or times out. On failure it prints a remediation banner
// to stderr and returns the error.
func InitMongoDB(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*storage.MongoDB, error) {
	db, err := storage.NewMongoDB(ctx, ConnectOptionsFromConfig(cfg), sugar)
	if err != nil {
		errMsg := ClassifyConnectionError(err, storage.RedactURI(cfg.MongoDB.URI))
		fmt.Fprintf(stderr, "\n========================================\n")
		fmt.Fprintf(stderr, "FATAL: MongoDB Connection Failed\n")
		fmt.Fprintf(stderr, "========================================\n")
		fmt.Fprintf(stderr, "%s\n", errMsg)
		fmt.Fprintf(stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	return db, nil
}

// InitUserStorage creates the user store and ensures its indexes exist.
func InitUserStorage(ctx context.Context, db *storage.MongoDB, cfg *config.Config, sugar *zap.SugaredLogger) (*storage.UserStorage, error) {
	users := storage.NewUserStorage(db, cfg.MongoDB.QueryTimeout, sugar)

	if err := users.EnsureIndexes(ctx); err != nil {
		fmt.Fprintf(stderr, "\n========================================\n")
		fmt.Fprintf(stderr, "FATAL: MongoDB Index Setup Failed\n")
		fmt.Fprintf(stderr, "========================================\n")
		fmt.Fprintf(stderr, "Failed to create/verify indexes on %q: %v\n", storage.UsersCollection, err)
		fmt.Fprintf(stderr, "\nRemediation:\n")
		fmt.Fprintf(stderr, "  - Check the MongoDB user has createIndex permission on '%s'\n", cfg.MongoDB.Database)
		fmt.Fprintf(stderr, "  - Remove duplicate email addresses before the unique index can be built\n")
		fmt.Fprintf(stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to ensure user indexes: %w", err)
	}

	sugar.Info("User storage initialized successfully")
	return users, nil
}
