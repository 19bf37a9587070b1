package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tallyapp/tally-server/internal/service"
)

func (s *Server) registerInviteRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createInvite",
		Method:      http.MethodPost,
		Path:        "/api/v1/invitations",
		Summary:     "Create invitation",
		Description: "Creates a shareable invitation link for a room. Any member may invite.",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateInvite)

	huma.Register(s.api, huma.Operation{
		OperationID: "getInviteDetails",
		Method:      http.MethodGet,
		Path:        "/api/v1/invitations/{token}",
		Summary:     "Get invitation details",
		Description: "Public preview of what an invitation is for, without redeeming it",
		Tags:        []string{"Invitations"},
	}, s.handleGetInviteDetails)

	huma.Register(s.api, huma.Operation{
		OperationID: "redeemInvite",
		Method:      http.MethodPost,
		Path:        "/api/v1/invitations/{token}/redeem",
		Summary:     "Redeem invitation",
		Description: "Joins the invitation's room. Every accepted redemption counts against the usage cap, including redemptions by existing members.",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRedeemInvite)

	huma.Register(s.api, huma.Operation{
		OperationID: "listInvites",
		Method:      http.MethodGet,
		Path:        "/api/v1/rooms/{id}/invitations",
		Summary:     "List room invitations",
		Description: "Returns a room's invitations. Owner only.",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListInvites)

	huma.Register(s.api, huma.Operation{
		OperationID: "revokeInvite",
		Method:      http.MethodDelete,
		Path:        "/api/v1/invitations/by-id/{id}",
		Summary:     "Revoke invitation",
		Description: "Deactivates an invitation ahead of its limits. Owner or creator only.",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRevokeInvite)
}

// === DTOs ===

// CreateInviteInput wraps the invitation creation request for Huma.
type CreateInviteInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	Body          struct {
		RoomID    string `json:"room_id" doc:"Room to invite into"`
		ExpiresIn string `json:"expires_in,omitempty" doc:"Validity window as a Go duration (e.g. 72h), empty for the server default"`
		MaxUses   *int   `json:"max_uses,omitempty" doc:"Maximum accepted redemptions, unlimited when omitted"`
	}
}

// InviteTokenInput identifies an invitation by its token.
type InviteTokenInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	Token         string `path:"token" doc:"Invitation token"`
}

// PublicInviteTokenInput identifies an invitation for unauthenticated
// preview.
type PublicInviteTokenInput struct {
	Token string `path:"token" doc:"Invitation token"`
}

// InviteIDInput identifies an invitation by its ID.
type InviteIDInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Invitation ID"`
}

// InviteResponse is one invitation with its shareable URL.
type InviteResponse struct {
	ID        string    `json:"id" doc:"Invitation ID"`
	Token     string    `json:"token" doc:"Invitation token"`
	URL       string    `json:"url" doc:"Shareable link"`
	RoomID    string    `json:"room_id" doc:"Room the invitation is for"`
	CreatedBy string    `json:"created_by" doc:"User who created the invitation"`
	ExpiresAt time.Time `json:"expires_at" doc:"Expiry timestamp"`
	MaxUses   *int      `json:"max_uses,omitempty" doc:"Usage cap, unlimited when omitted"`
	UsedCount int       `json:"used_count" doc:"Accepted redemptions so far"`
	IsActive  bool      `json:"is_active" doc:"False once expired, exhausted or revoked"`
	CreatedAt time.Time `json:"created_at" doc:"Creation timestamp"`
}

// InviteOutput wraps one invitation for Huma.
type InviteOutput struct {
	Body InviteResponse
}

// InviteListOutput wraps an invitation list for Huma.
type InviteListOutput struct {
	Body struct {
		Invitations []InviteResponse `json:"invitations" doc:"Room invitations"`
	}
}

// InviteDetailsOutput wraps the public invitation preview for Huma.
type InviteDetailsOutput struct {
	Body service.InviteDetails
}

// RedeemOutput wraps the redemption result for Huma.
type RedeemOutput struct {
	Body struct {
		Room          RoomResponse `json:"room" doc:"The joined room with its catalog"`
		AlreadyMember bool         `json:"already_member" doc:"True when the caller was already a member"`
	}
}

// === Handlers ===

func (s *Server) handleCreateInvite(ctx context.Context, input *CreateInviteInput) (*InviteOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.services.Invites.CreateInvite(ctx, userID, service.CreateInviteRequest{
		RoomID:    input.Body.RoomID,
		ExpiresIn: input.Body.ExpiresIn,
		MaxUses:   input.Body.MaxUses,
	})
	if err != nil {
		return nil, err
	}
	return &InviteOutput{Body: mapInviteResponse(resp)}, nil
}

func (s *Server) handleGetInviteDetails(ctx context.Context, input *PublicInviteTokenInput) (*InviteDetailsOutput, error) {
	details, err := s.services.Invites.GetInviteDetails(ctx, input.Token)
	if err != nil {
		return nil, err
	}
	return &InviteDetailsOutput{Body: *details}, nil
}

func (s *Server) handleRedeemInvite(ctx context.Context, input *InviteTokenInput) (*RedeemOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.services.Invites.RedeemInvite(ctx, userID, input.Token)
	if err != nil {
		return nil, err
	}

	out := &RedeemOutput{}
	out.Body.Room = mapRoomResponse(&service.RoomResponse{Room: resp.Room, ItemType: resp.ItemType})
	out.Body.AlreadyMember = resp.AlreadyMember
	return out, nil
}

func (s *Server) handleListInvites(ctx context.Context, input *RoomInput) (*InviteListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	invites, err := s.services.Invites.ListInvites(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	out := &InviteListOutput{}
	out.Body.Invitations = make([]InviteResponse, 0, len(invites))
	for _, invite := range invites {
		out.Body.Invitations = append(out.Body.Invitations, mapInviteResponse(invite))
	}
	return out, nil
}

func (s *Server) handleRevokeInvite(ctx context.Context, input *InviteIDInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Invites.RevokeInvite(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "invitation revoked"}}, nil
}

func mapInviteResponse(resp *service.InviteResponse) InviteResponse {
	return InviteResponse{
		ID:        resp.ID,
		Token:     resp.Token,
		URL:       resp.URL,
		RoomID:    resp.RoomID,
		CreatedBy: resp.CreatedBy,
		ExpiresAt: resp.ExpiresAt,
		MaxUses:   resp.MaxUses,
		UsedCount: resp.UsedCount,
		IsActive:  resp.IsActive,
		CreatedAt: resp.CreatedAt,
	}
}
