// Package service implements business logic for the value stream application.
//
// MapService coordinates between the HTTP handlers, the file watcher and the
// repository layer. It validates input, applies changes through the vsm
// mutator so metrics are recomputed on every structural change, persists the
// result and publishes an event.
//
// # Event System
//
// Every successful write publishes an Event on the EventBus. The SSE hub
// forwards these to connected clients. Payloads carry the map ID and the
// freshly computed stream metrics.
//
// # Concurrency
//
// Writes to one map are serialised by a per-map mutex. Reads go straight to
// the repository.
package service
