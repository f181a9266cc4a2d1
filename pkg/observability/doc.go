/*
Package observability turns engine lifecycle events into Prometheus metrics
and structured log lines.

Both are exposed as domain.LifecycleHooks, so they plug into the engine with
leadflow.WithLifecycleHooks and can be stacked with Combine.
*/
package observability
