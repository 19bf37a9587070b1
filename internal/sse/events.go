// Package sse streams room change events to connected clients over
// Server-Sent Events.
package sse

// RoomEvent describes a change scoped to a single room. Clients
// subscribed to the stream re-fetch the affected resources; events
// carry identity, not payloads.
type RoomEvent struct {
	Type   string `json:"type"` // e.g. "item.create", "member.delete"
	RoomID string `json:"room_id"`
	UserID string `json:"user_id,omitempty"`
}
