// Package monitor is the single entry point into a session.Controller.
//
// Frames and control operations from any goroutine (frame source, HTTP API,
// config watcher) are funnelled through one lock so the controller never sees
// concurrent calls. A frame that arrives while another is still being processed
// is dropped with ErrBusy; control operations wait their turn.
//
// Every accepted frame and every control operation is published as an Event to
// the registered observers, in order, while the lock is held. Observers must
// not block: the Prometheus collector, the alert notifier, the gRPC health
// reporter and the websocket hub all hand off or record and return.
package monitor
