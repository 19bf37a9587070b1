package store

import (
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/tallyapp/tally-server/internal/domain"
	"github.com/tallyapp/tally-server/internal/sse"
)

// Emitter is the interface for broadcasting change events.
// Store uses this to publish changes without depending on the SSE implementation.
type Emitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of Emitter for testing.
type NoopEmitter struct{}

// Emit implements Emitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// Store wraps a Badger database instance and exposes the entity sets
// the application persists.
type Store struct {
	db      *badger.DB
	logger  *slog.Logger
	emitter Emitter

	Users         *Entity[domain.User]
	Profiles      *Entity[domain.Profile]
	Rooms         *Entity[domain.Room]
	Members       *Entity[domain.Member]
	ItemTypes     *Entity[domain.ItemType]
	Items         *Entity[domain.Item]
	Invitations   *Entity[domain.Invitation]
	RefreshTokens *Entity[domain.RefreshToken]
}

// Open opens (creating if needed) the database at path.
// The emitter is required and used to broadcast store changes.
func Open(path string, logger *slog.Logger, emitter Emitter) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Sync writes to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:      db,
		logger:  logger,
		emitter: emitter,
	}
	s.initEntities()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return s, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// normalizeEmail lowercases and trims an email for case-insensitive indexing.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) initEntities() {
	s.Users = NewEntity[domain.User](s, "user:").
		WithUniqueIndex("email",
			func(u *domain.User) []string { return []string{u.Email} },
			normalizeEmail,
		)

	// Profiles are keyed by user ID directly; no secondary index needed.
	s.Profiles = NewEntity[domain.Profile](s, "profile:")

	s.Rooms = NewEntity[domain.Room](s, "room:").
		WithUniqueIndex("name",
			func(r *domain.Room) []string { return []string{r.Name} },
			strings.ToLower,
		).
		WithEvents(func(op Op, r *domain.Room) any {
			return sse.RoomEvent{Type: "room." + string(op), RoomID: r.ID}
		})

	s.Members = NewEntity[domain.Member](s, "member:").
		WithIndex("room", func(m *domain.Member) []string { return []string{m.RoomID} }).
		WithIndex("user", func(m *domain.Member) []string { return []string{m.UserID} }).
		WithUniqueIndex("room_user",
			func(m *domain.Member) []string { return []string{m.RoomID + "/" + m.UserID} },
			nil,
		).
		WithEvents(func(op Op, m *domain.Member) any {
			return sse.RoomEvent{Type: "member." + string(op), RoomID: m.RoomID, UserID: m.UserID}
		})

	s.ItemTypes = NewEntity[domain.ItemType](s, "itemtype:")

	s.Items = NewEntity[domain.Item](s, "item:").
		WithIndex("room", func(i *domain.Item) []string { return []string{i.RoomID} }).
		WithEvents(func(op Op, i *domain.Item) any {
			return sse.RoomEvent{Type: "item." + string(op), RoomID: i.RoomID, UserID: i.UserID}
		})

	s.Invitations = NewEntity[domain.Invitation](s, "invite:").
		WithUniqueIndex("token",
			func(i *domain.Invitation) []string { return []string{i.Token} },
			nil,
		).
		WithIndex("room", func(i *domain.Invitation) []string { return []string{i.RoomID} })

	s.RefreshTokens = NewEntity[domain.RefreshToken](s, "refresh:").
		WithUniqueIndex("hash",
			func(t *domain.RefreshToken) []string { return []string{t.TokenHash} },
			nil,
		).
		WithIndex("user", func(t *domain.RefreshToken) []string { return []string{t.UserID} })
}
