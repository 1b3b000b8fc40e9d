// Package api implements the carte HTTP API surface.
//
// Owns:
//   - HTTP routing, handlers, and request/response contracts
//   - Mapping of store errors to status codes
//   - Request logging and Prometheus instrumentation
//
// Does not own:
//   - Referential integrity, merging and cascades (package store)
//   - Storage backends
//
// Invariants:
//   - JSON responses go through writeJSON; errors are plain text
//   - A missing entity is always 404 "<Kind> not found"
//   - Request bodies are JSON objects of at most 2 MiB; empty means {}
package api
