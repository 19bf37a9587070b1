package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tallyapp/tally-server/internal/domain"
	domainerrors "github.com/tallyapp/tally-server/internal/errors"
	"github.com/tallyapp/tally-server/internal/gateway"
	"github.com/tallyapp/tally-server/internal/id"
	"github.com/tallyapp/tally-server/internal/store"
)

// RoomService handles room lifecycle and membership.
type RoomService struct {
	store   *store.Store
	gateway gateway.Gateway
	logger  *slog.Logger
}

// NewRoomService creates a new room service.
func NewRoomService(st *store.Store, gw gateway.Gateway, logger *slog.Logger) *RoomService {
	return &RoomService{
		store:   st,
		gateway: gw,
		logger:  logger,
	}
}

// OptionInput defines one countable option of a new room.
type OptionInput struct {
	Name   string `json:"name" validate:"required,max=100"`
	Emoji  string `json:"emoji" validate:"max=16"`
	Points int    `json:"points" validate:"gte=0"`
}

// CreateRoomRequest contains the data needed to create a room.
type CreateRoomRequest struct {
	Name      string        `json:"name" validate:"required,min=2,max=100"`
	SecretKey string        `json:"secret_key" validate:"required,min=4,max=100"`
	TypeName  string        `json:"type_name" validate:"required,max=100"`
	Options   []OptionInput `json:"options" validate:"required,min=1,dive"`
}

// RoomResponse pairs a room with its option catalog.
type RoomResponse struct {
	Room     *domain.Room     `json:"room"`
	ItemType *domain.ItemType `json:"item_type"`
}

// MemberResponse is one room member with their public profile.
type MemberResponse struct {
	Member  *domain.Member  `json:"member"`
	Profile *domain.Profile `json:"profile,omitempty"`
	Name    string          `json:"name"`
}

// CreateRoom creates a room with its option catalog and makes the
// creator its owner.
func (s *RoomService) CreateRoom(ctx context.Context, ownerID string, req CreateRoomRequest) (*RoomResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	itemType := &domain.ItemType{
		Name:    req.TypeName,
		Options: make([]domain.ItemOption, 0, len(req.Options)),
	}
	for _, opt := range req.Options {
		optionID, err := id.Generate("opt")
		if err != nil {
			return nil, fmt.Errorf("generate option ID: %w", err)
		}
		itemType.Options = append(itemType.Options, domain.ItemOption{
			ID:     optionID,
			Name:   opt.Name,
			Emoji:  opt.Emoji,
			Points: opt.Points,
		})
	}
	itemType.ID = id.MustGenerate("itemtype")
	itemType.InitTimestamps()

	if err := s.store.ItemTypes.Create(ctx, itemType.ID, itemType); err != nil {
		return nil, fmt.Errorf("create item type: %w", err)
	}

	room := &domain.Room{
		Name:       req.Name,
		SecretKey:  req.SecretKey,
		OwnerID:    ownerID,
		ItemTypeID: itemType.ID,
	}
	room.ID = id.MustGenerate("room")
	room.InitTimestamps()

	if err := s.store.Rooms.Create(ctx, room.ID, room); err != nil {
		// Leave the orphaned item type behind; nothing references it and
		// it is invisible without a room pointing at it.
		if errors.Is(err, store.ErrIndexConflict) {
			return nil, domainerrors.AlreadyExists("a room with this name already exists")
		}
		return nil, fmt.Errorf("create room: %w", err)
	}

	if err := s.gateway.AddMember(ctx, room.ID, ownerID, domain.RoleOwner); err != nil {
		return nil, fmt.Errorf("add owner membership: %w", err)
	}

	s.logger.Info("Room created", "room_id", room.ID, "name", room.Name, "owner_id", ownerID)

	return &RoomResponse{Room: room, ItemType: itemType}, nil
}

// GetRoom returns a room by name for one of its members.
func (s *RoomService) GetRoom(ctx context.Context, userID, name string) (*RoomResponse, error) {
	room, err := s.gateway.GetRoom(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := s.requireMember(ctx, room.ID, userID); err != nil {
		return nil, err
	}

	itemType, err := s.store.ItemTypes.Get(ctx, room.ItemTypeID)
	if err != nil {
		return nil, fmt.Errorf("get item type: %w", err)
	}

	return &RoomResponse{Room: room, ItemType: itemType}, nil
}

// JoinRoom grants membership to a user presenting the room's name and
// secret key. Already being a member is a no-op success, so a device
// can rejoin from its stored ref after a reinstall.
func (s *RoomService) JoinRoom(ctx context.Context, userID, name, secretKey string) (*RoomResponse, error) {
	room, err := s.gateway.GetRoom(ctx, name)
	if err != nil {
		return nil, err
	}

	if room.SecretKey != secretKey {
		return nil, domainerrors.Forbidden("wrong secret key for this room")
	}

	if err := s.gateway.AddMember(ctx, room.ID, userID, domain.RoleMember); err != nil {
		return nil, err
	}

	itemType, err := s.store.ItemTypes.Get(ctx, room.ItemTypeID)
	if err != nil {
		return nil, fmt.Errorf("get item type: %w", err)
	}

	s.logger.Info("User joined room", "room_id", room.ID, "user_id", userID)

	return &RoomResponse{Room: room, ItemType: itemType}, nil
}

// LeaveRoom revokes the caller's own membership. The owner cannot
// leave their room; they would orphan it.
func (s *RoomService) LeaveRoom(ctx context.Context, userID, roomID string) error {
	room, err := s.gateway.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID == userID {
		return domainerrors.Forbidden("the room owner cannot leave their own room")
	}
	return s.gateway.RemoveMember(ctx, roomID, userID)
}

// KickMember removes another user from the room. Owner only.
func (s *RoomService) KickMember(ctx context.Context, callerID, roomID, userID string) error {
	room, err := s.gateway.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != callerID {
		return domainerrors.Forbidden("only the room owner can remove members")
	}
	if userID == room.OwnerID {
		return domainerrors.Forbidden("the room owner cannot be removed")
	}
	return s.gateway.RemoveMember(ctx, roomID, userID)
}

// ListMembers returns the members of a room with their profiles.
// Caller must be a member.
func (s *RoomService) ListMembers(ctx context.Context, userID, roomID string) ([]MemberResponse, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	members, err := store.Collect(s.store.Members.ListByIndex(ctx, "room", roomID))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp := MemberResponse{Member: m}
		if user, err := s.store.Users.Get(ctx, m.UserID); err == nil {
			resp.Name = user.Name()
		}
		if profile, err := s.gateway.GetUserProfile(ctx, m.UserID); err == nil {
			resp.Profile = profile
		}
		out = append(out, resp)
	}
	return out, nil
}

// ListRoomsForUser returns every room the user belongs to.
func (s *RoomService) ListRoomsForUser(ctx context.Context, userID string) ([]*domain.Room, error) {
	memberships, err := store.Collect(s.store.Members.ListByIndex(ctx, "user", userID))
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	rooms := make([]*domain.Room, 0, len(memberships))
	for _, m := range memberships {
		room, err := s.gateway.GetRoomByID(ctx, m.RoomID)
		if err != nil {
			// Membership pointing at a deleted room; skip it.
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// requireMember returns a forbidden error unless userID is in the room.
func (s *RoomService) requireMember(ctx context.Context, roomID, userID string) error {
	member, err := s.gateway.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !member {
		return domainerrors.Forbidden("you are not a member of this room")
	}
	return nil
}
