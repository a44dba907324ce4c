// Package sinks holds progress.Sink implementations: a structured log sink
// and a Prometheus sink.
package sinks
