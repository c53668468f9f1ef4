// Package app wires the dataset service into a running HTTP server.
//
// NewApplication loads configuration when none is given, then builds, in
// order, the logger, OpenTelemetry providers and business metrics, the
// dataset store, the WebSocket hub, the services and the chi router.
// Initialization errors are returned; the package never exits the process.
//
// # Routes
//
//	/ws           WebSocket event stream
//	/metrics      Prometheus scrape endpoint, when metrics are enabled
//	/api/health   liveness, readiness and version
//	/             dataset upload, inspection, cleaning and export
//
// # Usage
//
//	a, err := app.NewApplication(ctx, nil, nil)
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx)
//
// Run returns after SIGINT or SIGTERM once the server has drained, the hub
// has closed every WebSocket client and telemetry has been flushed.
package app
