// Package ws streams monitor status to browser and overlay clients.
//
// The Hub sends the current status on connect, then on every broadcast tick.
// Alert and control events are pushed right away instead of waiting for the
// next tick. Every message is a JSON envelope:
//
//	{
//	  "event": "status" | "alert" | "control",
//	  "data":  { /* same schema as GET /api/v1/status */ }
//	}
//
// The upgrader accepts all origins. The hub is mounted at /ws/stream.
package ws
