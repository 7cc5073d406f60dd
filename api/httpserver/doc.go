// Package httpserver provides the shared HTTP server shell for
// QuantAgg services.
//
// BaseServer wires a chi router with request-ID, real-IP and recovery
// middleware, structured request logging, standard health endpoints
// (/livez, /readyz), drain control for load balancers (/drain,
// /undrain), an optional Prometheus-compatible metrics listener and
// optional pprof. Services contribute their own endpoints through the
// RouteRegistrar interface and reuse the lifecycle (RunInBackground,
// graceful Shutdown) unchanged.
package httpserver
