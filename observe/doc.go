// Package observe provides observability primitives for the storesync core.
//
// It carries a minimal structured Logger, OpenTelemetry tracing and metrics
// keyed by OpMeta, and a Middleware that wraps an operation with all three.
// Components accept a Logger and a *Middleware through their configs; nil
// values fall back to no-ops so the core runs without any telemetry wiring.
package observe
