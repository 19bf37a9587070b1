// Package gateway is the room/membership boundary the core talks
// through. Callers treat it as a capability: every method either
// answers from the backend or fails with a typed error, and transport
// or storage trouble always surfaces as an unavailable error rather
// than leaking backend internals.
package gateway

import (
	"context"
	"errors"
	"fmt"

	domainerrors "github.com/tallyapp/tally-server/internal/errors"

	"github.com/tallyapp/tally-server/internal/domain"
	"github.com/tallyapp/tally-server/internal/id"
	"github.com/tallyapp/tally-server/internal/store"
)

// Gateway exposes the room and membership reads/writes the core needs.
type Gateway interface {
	// GetRoom looks a room up by name. Returns a not-found error when no
	// such room exists.
	GetRoom(ctx context.Context, name string) (*domain.Room, error)
	// GetRoomByID looks a room up by its document ID.
	GetRoomByID(ctx context.Context, roomID string) (*domain.Room, error)
	// IsMember reports whether userID holds a membership in roomID.
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	// AddMember grants userID membership in roomID. Granting an existing
	// membership is a no-op success.
	AddMember(ctx context.Context, roomID, userID string, role domain.MemberRole) error
	// RemoveMember revokes userID's membership in roomID. Revoking a
	// missing membership is a no-op success.
	RemoveMember(ctx context.Context, roomID, userID string) error
	// GetUserProfile returns the profile stored for userID, or a
	// not-found error.
	GetUserProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// StoreGateway implements Gateway against the document store.
type StoreGateway struct {
	store *store.Store
}

// NewStoreGateway returns a gateway backed by the given store.
func NewStoreGateway(s *store.Store) *StoreGateway {
	return &StoreGateway{store: s}
}

func (g *StoreGateway) GetRoom(ctx context.Context, name string) (*domain.Room, error) {
	room, err := g.store.Rooms.GetByIndex(ctx, "name", name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("room %q not found", name)
		}
		return nil, unavailable(err, "looking up room")
	}
	return room, nil
}

func (g *StoreGateway) GetRoomByID(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := g.store.Rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("room not found")
		}
		return nil, unavailable(err, "looking up room")
	}
	return room, nil
}

func (g *StoreGateway) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	_, err := g.store.Members.GetByIndex(ctx, "room_user", roomID+"/"+userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, unavailable(err, "checking membership")
	}
	return true, nil
}

func (g *StoreGateway) AddMember(ctx context.Context, roomID, userID string, role domain.MemberRole) error {
	member := &domain.Member{
		RoomID: roomID,
		UserID: userID,
		Role:   role,
	}
	member.ID = id.MustGenerate("member")
	member.InitTimestamps()

	if err := g.store.Members.Create(ctx, member.ID, member); err != nil {
		if errors.Is(err, store.ErrIndexConflict) {
			return nil
		}
		return unavailable(err, "granting membership")
	}
	return nil
}

func (g *StoreGateway) RemoveMember(ctx context.Context, roomID, userID string) error {
	member, err := g.store.Members.GetByIndex(ctx, "room_user", roomID+"/"+userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return unavailable(err, "looking up membership")
	}
	if err := g.store.Members.Delete(ctx, member.ID); err != nil {
		return unavailable(err, "revoking membership")
	}
	return nil
}

func (g *StoreGateway) GetUserProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := g.store.Profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("profile not found")
		}
		return nil, unavailable(err, "looking up profile")
	}
	return profile, nil
}

func unavailable(err error, during string) error {
	return domainerrors.Wrap(err, domainerrors.CodeUnavailable, fmt.Sprintf("backend unavailable while %s", during))
}
