package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tallyapp/tally-server/internal/domain"
	"github.com/tallyapp/tally-server/internal/service"
)

func (s *Server) registerRoomRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createRoom",
		Method:      http.MethodPost,
		Path:        "/api/v1/rooms",
		Summary:     "Create room",
		Description: "Creates a room with its option catalog; the caller becomes owner",
		Tags:        []string{"Rooms"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateRoom)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyRooms",
		Method:      http.MethodGet,
		Path:        "/api/v1/rooms",
		Summary:     "List my rooms",
		Tags:        []string{"Rooms"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMyRooms)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRoom",
		Method:      http.MethodGet,
		Path:        "/api/v1/rooms/by-name/{name}",
		Summary:     "Get room by name",
		Tags:        []string{"Rooms"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetRoom)

	huma.Register(s.api, huma.Operation{
		OperationID: "joinRoom",
		Method:      http.MethodPost,
		Path:        "/api/v1/rooms/join",
		Summary:     "Join room",
		Description: "Joins a room using its name and secret key",
		Tags:        []string{"Rooms"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleJoinRoom)

	huma.Register(s.api, huma.Operation{
		OperationID: "leaveRoom",
		Method:      http.MethodPost,
		Path:        "/api/v1/rooms/{id}/leave",
		Summary:     "Leave room",
		Tags:        []string{"Rooms"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleLeaveRoom)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMembers",
		Method:      http.MethodGet,
		Path:        "/api/v1/rooms/{id}/members",
		Summary:     "List room members",
		Tags:        []string{"Rooms"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMembers)

	huma.Register(s.api, huma.Operation{
		OperationID: "kickMember",
		Method:      http.MethodDelete,
		Path:        "/api/v1/rooms/{id}/members/{userId}",
		Summary:     "Remove member",
		Description: "Removes a member from the room. Owner only.",
		Tags:        []string{"Rooms"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleKickMember)
}

// === DTOs ===

// OptionRequest defines one countable option when creating a room.
type OptionRequest struct {
	Name   string `json:"name" doc:"Option name (e.g. Beer)"`
	Emoji  string `json:"emoji,omitempty" doc:"Display emoji"`
	Points int    `json:"points" doc:"Points per unit"`
}

// CreateRoomInput wraps the room creation request for Huma.
type CreateRoomInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	Body          struct {
		Name      string          `json:"name" doc:"Room name (unique)"`
		SecretKey string          `json:"secret_key" doc:"Shared key members use to rejoin"`
		TypeName  string          `json:"type_name" doc:"Name of the option catalog"`
		Options   []OptionRequest `json:"options" doc:"Countable options"`
	}
}

// RoomInput identifies a room by ID in the path.
type RoomInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Room ID"`
}

// RoomByNameInput identifies a room by name in the path.
type RoomByNameInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	Name          string `path:"name" doc:"Room name"`
}

// JoinRoomInput wraps the join request for Huma.
type JoinRoomInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	Body          struct {
		Name      string `json:"name" doc:"Room name"`
		SecretKey string `json:"secret_key" doc:"Room secret key"`
	}
}

// KickMemberInput identifies the member to remove.
type KickMemberInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Room ID"`
	UserID        string `path:"userId" doc:"User ID to remove"`
}

// OptionResponse is one catalog option.
type OptionResponse struct {
	ID     string `json:"id" doc:"Option ID"`
	Name   string `json:"name" doc:"Option name"`
	Emoji  string `json:"emoji,omitempty" doc:"Display emoji"`
	Points int    `json:"points" doc:"Points per unit"`
}

// RoomResponse is a room with its option catalog.
type RoomResponse struct {
	ID        string           `json:"id" doc:"Room ID"`
	Name      string           `json:"name" doc:"Room name"`
	SecretKey string           `json:"secret_key" doc:"Shared rejoin key"`
	OwnerID   string           `json:"owner_id" doc:"Owner user ID"`
	TypeName  string           `json:"type_name" doc:"Option catalog name"`
	Options   []OptionResponse `json:"options" doc:"Countable options"`
	CreatedAt time.Time        `json:"created_at" doc:"Creation timestamp"`
}

// RoomOutput wraps a room response for Huma.
type RoomOutput struct {
	Body RoomResponse
}

// RoomListOutput wraps a room list for Huma.
type RoomListOutput struct {
	Body struct {
		Rooms []RoomSummary `json:"rooms" doc:"Rooms the user belongs to"`
	}
}

// RoomSummary is a room without its catalog, for list views.
type RoomSummary struct {
	ID        string    `json:"id" doc:"Room ID"`
	Name      string    `json:"name" doc:"Room name"`
	SecretKey string    `json:"secret_key" doc:"Shared rejoin key"`
	OwnerID   string    `json:"owner_id" doc:"Owner user ID"`
	CreatedAt time.Time `json:"created_at" doc:"Creation timestamp"`
}

// MemberResponse is one room member.
type MemberResponse struct {
	UserID     string `json:"user_id" doc:"User ID"`
	Name       string `json:"name" doc:"Display name"`
	Role       string `json:"role" doc:"owner or member"`
	AvatarType string `json:"avatar_type,omitempty" doc:"Avatar type (auto or image)"`
	BlurHash   string `json:"blur_hash,omitempty" doc:"Avatar BlurHash placeholder"`
	Tagline    string `json:"tagline,omitempty" doc:"Member tagline"`
}

// MemberListOutput wraps the member list for Huma.
type MemberListOutput struct {
	Body struct {
		Members []MemberResponse `json:"members" doc:"Room members"`
	}
}

// === Handlers ===

func (s *Server) handleCreateRoom(ctx context.Context, input *CreateRoomInput) (*RoomOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	req := service.CreateRoomRequest{
		Name:      input.Body.Name,
		SecretKey: input.Body.SecretKey,
		TypeName:  input.Body.TypeName,
	}
	for _, opt := range input.Body.Options {
		req.Options = append(req.Options, service.OptionInput{
			Name:   opt.Name,
			Emoji:  opt.Emoji,
			Points: opt.Points,
		})
	}

	resp, err := s.services.Rooms.CreateRoom(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return &RoomOutput{Body: mapRoomResponse(resp)}, nil
}

func (s *Server) handleListMyRooms(ctx context.Context, _ *AuthenticatedInput) (*RoomListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	rooms, err := s.services.Rooms.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &RoomListOutput{}
	out.Body.Rooms = make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out.Body.Rooms = append(out.Body.Rooms, RoomSummary{
			ID:        room.ID,
			Name:      room.Name,
			SecretKey: room.SecretKey,
			OwnerID:   room.OwnerID,
			CreatedAt: room.CreatedAt,
		})
	}
	return out, nil
}

func (s *Server) handleGetRoom(ctx context.Context, input *RoomByNameInput) (*RoomOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.services.Rooms.GetRoom(ctx, userID, input.Name)
	if err != nil {
		return nil, err
	}
	return &RoomOutput{Body: mapRoomResponse(resp)}, nil
}

func (s *Server) handleJoinRoom(ctx context.Context, input *JoinRoomInput) (*RoomOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.services.Rooms.JoinRoom(ctx, userID, input.Body.Name, input.Body.SecretKey)
	if err != nil {
		return nil, err
	}
	return &RoomOutput{Body: mapRoomResponse(resp)}, nil
}

func (s *Server) handleLeaveRoom(ctx context.Context, input *RoomInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Rooms.LeaveRoom(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "left room"}}, nil
}

func (s *Server) handleListMembers(ctx context.Context, input *RoomInput) (*MemberListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	members, err := s.services.Rooms.ListMembers(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	out := &MemberListOutput{}
	out.Body.Members = make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp := MemberResponse{
			UserID: m.Member.UserID,
			Name:   m.Name,
			Role:   string(m.Member.Role),
		}
		if m.Profile != nil {
			resp.AvatarType = string(m.Profile.AvatarType)
			resp.BlurHash = m.Profile.BlurHash
			resp.Tagline = m.Profile.Tagline
		}
		out.Body.Members = append(out.Body.Members, resp)
	}
	return out, nil
}

func (s *Server) handleKickMember(ctx context.Context, input *KickMemberInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Rooms.KickMember(ctx, userID, input.ID, input.UserID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "member removed"}}, nil
}

func mapRoomResponse(resp *service.RoomResponse) RoomResponse {
	out := RoomResponse{
		ID:        resp.Room.ID,
		Name:      resp.Room.Name,
		SecretKey: resp.Room.SecretKey,
		OwnerID:   resp.Room.OwnerID,
		CreatedAt: resp.Room.CreatedAt,
	}
	if resp.ItemType != nil {
		out.TypeName = resp.ItemType.Name
		out.Options = mapOptions(resp.ItemType.Options)
	}
	return out
}

func mapOptions(options []domain.ItemOption) []OptionResponse {
	out := make([]OptionResponse, 0, len(options))
	for _, opt := range options {
		out = append(out, OptionResponse{
			ID:     opt.ID,
			Name:   opt.Name,
			Emoji:  opt.Emoji,
			Points: opt.Points,
		})
	}
	return out
}
