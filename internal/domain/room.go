package domain

// Room is a named collaborative space with an owner and a set of members.
// The (name, secret key) pair is what a device stores locally after joining;
// the secret key doubles as a shared credential for rejoining from a link.
type Room struct {
	Timestamps
	Name       string `json:"name"`
	SecretKey  string `json:"secret_key"`
	OwnerID    string `json:"owner_id"`
	ItemTypeID string `json:"item_type_id"`
}

// MemberRole distinguishes the room owner from regular members.
type MemberRole string

// Member roles.
const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

// Member ties a user to a room.
type Member struct {
	Timestamps
	RoomID string     `json:"room_id"`
	UserID string     `json:"user_id"`
	Role   MemberRole `json:"role"`
}

// IsOwner returns true if this membership carries the owner role.
func (m *Member) IsOwner() bool {
	return m.Role == RoleOwner
}
