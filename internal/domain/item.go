package domain

// ItemOption is a catalog entry defining a named, emoji-tagged,
// point-weighted countable thing (e.g. "Beer", 🍺, 5 points).
type ItemOption struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Emoji  string `json:"emoji"`
	Points int    `json:"points"`
}

// ItemType defines the option catalog a room counts against.
type ItemType struct {
	Timestamps
	Name    string       `json:"name"`
	Options []ItemOption `json:"options"`
}

// Option returns the catalog entry with the given ID, or nil if the
// option has been deleted from the type definition.
func (t *ItemType) Option(optionID string) *ItemOption {
	for i := range t.Options {
		if t.Options[i].ID == optionID {
			return &t.Options[i]
		}
	}
	return nil
}

// Item is one signed quantity event tied to an option. Items are
// immutable once created; a removal is a new event with IsRemoved set,
// never a mutation or deletion of a prior event.
type Item struct {
	Timestamps
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	OptionID  string `json:"option_id"`
	Count     int    `json:"count"`
	IsRemoved bool   `json:"is_removed,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// AggregatedItem is the net result of folding add/remove events for
// one option. Derived on every read, never persisted.
type AggregatedItem struct {
	OptionID    string     `json:"option_id"`
	Option      ItemOption `json:"option"`
	Count       int        `json:"count"`
	TotalPoints int        `json:"total_points"`
}

// maxCommentLength bounds the free-text comment on an item event.
const maxCommentLength = 200

// ValidateComment reports whether a comment fits the item constraints.
func ValidateComment(comment string) bool {
	return len(comment) <= maxCommentLength
}
