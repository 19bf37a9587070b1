package domain

import "time"

// Invitation is a time- and use-limited credential granting room
// membership. Created by the room owner or an existing member and
// redeemed by anyone holding the token.
type Invitation struct {
	Timestamps
	Token     string    `json:"token"` // Opaque, URL-safe
	RoomID    string    `json:"room_id"`
	CreatedBy string    `json:"created_by"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxUses   *int      `json:"max_uses,omitempty"` // nil = unlimited
	UsedCount int       `json:"used_count"`
	IsActive  bool      `json:"is_active"`
}

// IsExpired returns true if the invitation has passed its expiration time.
func (i *Invitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// IsExhausted returns true if the invitation has reached its usage cap.
func (i *Invitation) IsExhausted() bool {
	return i.MaxUses != nil && i.UsedCount >= *i.MaxUses
}

// Deactivate permanently turns the invitation off. The transition is
// one-way; there is no reactivation.
func (i *Invitation) Deactivate() {
	i.IsActive = false
	i.Touch()
}

// Status returns a human-readable status string for the invitation.
func (i *Invitation) Status() string {
	if !i.IsActive {
		return "inactive"
	}
	if i.IsExpired() {
		return "expired"
	}
	if i.IsExhausted() {
		return "exhausted"
	}
	return "active"
}
