package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mongograph/api"
	"mongograph/config"
	"mongograph/gql"
	"mongograph/storage"
	"mongograph/util/goroutine"

	"github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"
)

// App represents the mongograph application with all its components.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Storage
	MongoDB     *storage.MongoDB
	UserStorage *storage.UserStorage

	// Services
	Schema    *graphql.Schema
	APIServer *api.API

	// Lifecycle
	serverErr    chan error
	shutdownOnce sync.Once
}

// NewApp creates a new application instance and initializes all components.
// It blocks on the MongoDB connection attempt and fails if it does not succeed.
func NewApp(ctx context.Context) (*App, error) {
	logger, sugar, level := InitLogger()

	sugar.Info("mongograph starting...")

	cfg, err := InitConfig(sugar, level)
	if err != nil {
		return nil, err
	}

	app, err := NewAppWithConfig(ctx, cfg, sugar)
	if err != nil {
		return nil, err
	}
	app.Logger = logger
	return app, nil
}

// NewAppWithConfig initializes all components from an already loaded configuration.
func NewAppWithConfig(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*App, error) {
	app := &App{
		Config:    cfg,
		Logger:    sugar.Desugar(),
		Sugar:     sugar,
		serverErr: make(chan error, 1),
	}

	db, err := InitMongoDB(ctx, cfg, sugar)
	if err != nil {
		return nil, err
	}
	app.MongoDB = db

	users, err := InitUserStorage(ctx, db, cfg, sugar)
	if err != nil {
		app.closeMongoDB()
		return nil, err
	}
	app.UserStorage = users

	schema, err := InitGraphQL(users, db, cfg, sugar)
	if err != nil {
		app.closeMongoDB()
		return nil, err
	}
	app.Schema = schema

	app.APIServer = api.NewAPI(schema, db, db.Host, cfg, sugar)

	return app, nil
}

// InitGraphQL builds the executable GraphQL schema over the user store.
func InitGraphQL(users gql.UserStore, db *storage.MongoDB, cfg *config.Config, sugar *zap.SugaredLogger) (*graphql.Schema, error) {
	resolver := gql.NewResolver(users, db, db.Host, sugar)
	schema, err := gql.NewSchema(resolver, gql.SchemaOptions{
		MaxDepth:       cfg.API.GraphQL.MaxDepth,
		MaxParallelism: cfg.API.GraphQL.MaxParallelism,
	}, sugar)
	if err != nil {
		return nil, err
	}
	sugar.Info("GraphQL schema initialized successfully")
	return schema, nil
}

// Start serves the API in the background. A serve failure is reported by WaitForShutdown.
func (a *App) Start() {
	addr := a.Config.Addr()
	goroutine.Go("api-server", a.Sugar, func() {
		if err := a.APIServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Sugar.Errorw("API server failed", "addr", addr, "error", err)
			a.serverErr <- fmt.Errorf("API server failed: %w", err)
		}
	})
	a.Sugar.Infow("mongograph ready", "graphql", "http://"+addr+"/graphql", "database_host", a.MongoDB.Host)
}

// WaitForShutdown blocks until SIGINT/SIGTERM or the API server fails.
func (a *App) WaitForShutdown() error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		a.Sugar.Infow("Received shutdown signal", "signal", sig.String())
		return nil
	case err := <-a.serverErr:
		return err
	}
}

// Shutdown gracefully shuts down all components. It is safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.Sugar.Info("Shutting down...")

		if a.APIServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), a.Config.API.ShutdownTimeout)
			if err := a.APIServer.Stop(ctx); err != nil {
				a.Sugar.Errorw("API server shutdown failed", "error", err)
			}
			cancel()
		}

		a.closeMongoDB()

		a.Sugar.Info("Shutdown complete")
		_ = a.Logger.Sync()
	})
}

func (a *App) closeMongoDB() {
	if a.MongoDB == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.API.ShutdownTimeout)
	defer cancel()
	if err := a.MongoDB.Close(ctx); err != nil {
		a.Sugar.Errorw("MongoDB disconnect failed", "error", err)
		return
	}
	a.Sugar.Info("MongoDB disconnected")
}
