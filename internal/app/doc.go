// Package app wires the timesheet service together: configuration,
// telemetry, storage, services, handlers and the HTTP server.
//
// # Initialization Flow
//
//  1. Initialize telemetry (tracer, meter, Prometheus registry)
//  2. Open the configured object store
//  3. Create the services on top of it
//  4. Build the router and middleware chain
//  5. Create the HTTP server
//
// # Usage
//
//	application, err := app.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// Run serves until ctx is cancelled, then shuts the server down within
// the configured shutdown timeout. The retention sweeper runs alongside
// the server and stops with it. The package never calls os.Exit.
package app
