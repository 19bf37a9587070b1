package domain

import "time"

// JoinedRoomRef identifies a room a device has joined. Refs are keyed
// by the (name, secret key) pair for uniqueness within a session.
type JoinedRoomRef struct {
	Name        string     `json:"name"`
	SecretKey   string     `json:"secret_key"`
	JoinedAt    time.Time  `json:"joined_at"`
	LastVisited *time.Time `json:"last_visited,omitempty"`
}

// Matches reports whether the ref identifies the same room join.
func (r *JoinedRoomRef) Matches(name, secretKey string) bool {
	return r.Name == name && r.SecretKey == secretKey
}

// UserSession is the local device's "which rooms have I joined" state.
// Order of JoinedRooms is recency of add and carries no meaning.
type UserSession struct {
	JoinedRooms     []JoinedRoomRef `json:"joined_rooms"`
	CurrentRoomName string          `json:"current_room_name,omitempty"`
}

// NewUserSession returns an empty, valid session.
func NewUserSession() *UserSession {
	return &UserSession{JoinedRooms: []JoinedRoomRef{}}
}

// Clone returns a deep copy of the session.
func (s *UserSession) Clone() *UserSession {
	c := &UserSession{
		JoinedRooms:     make([]JoinedRoomRef, len(s.JoinedRooms)),
		CurrentRoomName: s.CurrentRoomName,
	}
	copy(c.JoinedRooms, s.JoinedRooms)
	return c
}

// HasRoom reports whether a ref with the given name exists.
func (s *UserSession) HasRoom(name string) bool {
	for i := range s.JoinedRooms {
		if s.JoinedRooms[i].Name == name {
			return true
		}
	}
	return false
}

// SessionValidation is the tagged result of a structural session check.
// Failures carry the first problem found; they are values, not errors,
// because an invalid session is an expected state the store degrades from.
type SessionValidation struct {
	Valid  bool
	Reason string
}

// ValidateSession structurally checks a session: every ref needs a
// non-empty name and secret key and a set joined-at time, and the
// current room (if any) must match an existing ref.
func ValidateSession(s *UserSession) SessionValidation {
	if s == nil {
		return SessionValidation{Reason: "session is nil"}
	}
	for i := range s.JoinedRooms {
		ref := &s.JoinedRooms[i]
		if ref.Name == "" {
			return SessionValidation{Reason: "joined room has empty name"}
		}
		if ref.SecretKey == "" {
			return SessionValidation{Reason: "joined room has empty secret key"}
		}
		if ref.JoinedAt.IsZero() {
			return SessionValidation{Reason: "joined room has no joined-at time"}
		}
	}
	if s.CurrentRoomName != "" && !s.HasRoom(s.CurrentRoomName) {
		return SessionValidation{Reason: "current room is not in joined rooms"}
	}
	return SessionValidation{Valid: true}
}
