// Package progress provides the event primitives, non-blocking hub, and step
// tracker the launcher uses to report what it is doing. Events are batched on
// a background goroutine and fanned out to pluggable sinks such as structured
// logs or Prometheus collectors; emitting never blocks the launch pipeline.
package progress
