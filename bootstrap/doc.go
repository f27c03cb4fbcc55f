// Package bootstrap provides application initialization and lifecycle management.
// It extracts the initialization logic from main.go into testable, composable components.
//
// The MongoDB connection is established once, before anything else is served.
// A failed attempt is reported on stderr and returned; main turns it into exit status 1.
//
// Usage:
//
//	app, err := bootstrap.NewApp(ctx)
//	if err != nil {
//	    return err
//	}
//	defer app.Shutdown()
//
//	app.Start()
//
//	// Wait for a shutdown signal or a server failure
//	err = app.WaitForShutdown()
package bootstrap
