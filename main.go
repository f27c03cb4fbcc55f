// Package main is the entry point for the mongograph GraphQL server.
package main

import (
	"context"
	"fmt"
	"os"

	"mongograph/bootstrap"
	"mongograph/cmd"
)

// run connects to MongoDB, serves GraphQL and blocks until shutdown.
func run() error {
	ctx := context.Background()

	// Blocks on the single MongoDB connection attempt
	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Shutdown()

	app.Start()

	return app.WaitForShutdown()
}

// main is the entry point.
func main() {
	// Check if running as CLI command
	if len(os.Args) > 1 && os.Args[1] == "db" {
		// Strip "db" from os.Args since the command already knows it's the db command
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

		if err := cmd.NewDBCmd().Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Otherwise run as normal server
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
