package service

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand/v2"
	"time"

	"github.com/tallyapp/tally-server/internal/domain"
	domainerrors "github.com/tallyapp/tally-server/internal/errors"
	"github.com/tallyapp/tally-server/internal/gateway"
	"github.com/tallyapp/tally-server/internal/id"
	"github.com/tallyapp/tally-server/internal/store"
)

// inviteTokenSize is the number of random bytes in an invitation token
// (16 bytes = 128 bits of entropy).
const inviteTokenSize = 16

// InviteService issues and redeems time- and use-limited room
// invitations.
type InviteService struct {
	store         *store.Store
	gateway       gateway.Gateway
	logger        *slog.Logger
	publicURL     string // Base URL for generating invitation links
	basePath      string // Path component of invitation links
	defaultExpiry time.Duration
}

// NewInviteService creates a new invitation service.
func NewInviteService(
	st *store.Store,
	gw gateway.Gateway,
	logger *slog.Logger,
	publicURL string,
	basePath string,
	defaultExpiry time.Duration,
) *InviteService {
	return &InviteService{
		store:         st,
		gateway:       gw,
		logger:        logger,
		publicURL:     publicURL,
		basePath:      basePath,
		defaultExpiry: defaultExpiry,
	}
}

// CreateInviteRequest contains the data needed to create an invitation.
type CreateInviteRequest struct {
	RoomID    string `json:"room_id" validate:"required"`
	ExpiresIn string `json:"expires_in,omitempty"` // Go duration, empty = server default
	MaxUses   *int   `json:"max_uses,omitempty" validate:"omitempty,gte=1"`
}

// InviteResponse is returned after creating an invitation.
type InviteResponse struct {
	*domain.Invitation
	URL string `json:"url"` // Full URL for sharing
}

// RedeemResponse is returned after redeeming an invitation.
type RedeemResponse struct {
	Room          *domain.Room     `json:"room"`
	ItemType      *domain.ItemType `json:"item_type"`
	AlreadyMember bool             `json:"already_member"`
}

// CreateInvite creates an invitation for a room. Any member may invite;
// everyone else is refused.
func (s *InviteService) CreateInvite(ctx context.Context, userID string, req CreateInviteRequest) (*InviteResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	room, err := s.gateway.GetRoomByID(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}

	member, err := s.gateway.IsMember(ctx, room.ID, userID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != userID && !member {
		return nil, domainerrors.Forbidden("only room members can create invitations")
	}

	expiresIn := s.defaultExpiry
	if req.ExpiresIn != "" {
		expiresIn, err = time.ParseDuration(req.ExpiresIn)
		if err != nil || expiresIn <= 0 {
			return nil, domainerrors.Validation("expires_in must be a positive duration")
		}
	}

	token := generateInviteToken(s.logger)

	inviteID, err := id.Generate("invite")
	if err != nil {
		return nil, fmt.Errorf("generate invite ID: %w", err)
	}

	invite := &domain.Invitation{
		Token:     token,
		RoomID:    room.ID,
		CreatedBy: userID,
		ExpiresAt: time.Now().Add(expiresIn),
		MaxUses:   req.MaxUses,
		IsActive:  true,
	}
	invite.ID = inviteID
	invite.InitTimestamps()

	if err := s.store.Invitations.Create(ctx, invite.ID, invite); err != nil {
		if errors.Is(err, store.ErrIndexConflict) {
			// Practically impossible with 128-bit tokens, but handle it.
			return nil, domainerrors.Conflict("invitation token collision, please try again")
		}
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	s.logger.Info("Invitation created",
		"invite_id", invite.ID,
		"room_id", room.ID,
		"created_by", userID,
		"expires_at", invite.ExpiresAt,
	)

	return &InviteResponse{
		Invitation: invite,
		URL:        s.InviteURL(token),
	}, nil
}

// InviteURL builds the shareable link for a token:
// <public-url><base-path>?invite=<token>.
func (s *InviteService) InviteURL(token string) string {
	return s.publicURL + s.basePath + "?invite=" + token
}

// RedeemInvite redeems an invitation token for the calling user.
//
// A deactivated invitation behaves as if it never existed. Expiry and
// usage caps are enforced lazily: a still-active invitation past its
// limits is deactivated the moment someone trips over it, and that
// failed attempt reports why; later attempts see a dead token. A
// successful redemption increments the use count even when the caller
// was already a member; every accepted click counts against the cap.
// The grant and the count increment are separate writes with no
// rollback; a failed increment leaves the membership behind.
func (s *InviteService) RedeemInvite(ctx context.Context, userID, token string) (*RedeemResponse, error) {
	invite, err := s.store.Invitations.GetByIndex(ctx, "token", token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("invitation not found")
		}
		return nil, fmt.Errorf("look up invitation: %w", err)
	}

	if !invite.IsActive {
		return nil, domainerrors.NotFound("invitation not found")
	}

	if invite.IsExpired() {
		s.deactivate(ctx, invite)
		return nil, domainerrors.Expired("this invitation has expired")
	}

	if invite.IsExhausted() {
		s.deactivate(ctx, invite)
		return nil, domainerrors.UsageLimit("this invitation has reached its usage limit")
	}

	room, err := s.gateway.GetRoomByID(ctx, invite.RoomID)
	if err != nil {
		return nil, err
	}

	alreadyMember, err := s.gateway.IsMember(ctx, room.ID, userID)
	if err != nil {
		return nil, err
	}
	if !alreadyMember {
		if err := s.gateway.AddMember(ctx, room.ID, userID, domain.RoleMember); err != nil {
			return nil, err
		}
	}

	invite.UsedCount++
	invite.Touch()
	if err := s.store.Invitations.Update(ctx, invite.ID, invite); err != nil {
		return nil, fmt.Errorf("record invitation use: %w", err)
	}

	itemType, err := s.store.ItemTypes.Get(ctx, room.ItemTypeID)
	if err != nil {
		return nil, fmt.Errorf("get item type: %w", err)
	}

	s.logger.Info("Invitation redeemed",
		"invite_id", invite.ID,
		"room_id", room.ID,
		"user_id", userID,
		"used_count", invite.UsedCount,
	)

	return &RedeemResponse{
		Room:          room,
		ItemType:      itemType,
		AlreadyMember: alreadyMember,
	}, nil
}

// InviteDetails is the public view of an invitation, shown on the join
// landing page before the viewer has an account.
type InviteDetails struct {
	RoomName  string    `json:"room_name"`
	InvitedBy string    `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
	Valid     bool      `json:"valid"`
}

// GetInviteDetails returns what an invitation is for, without
// redeeming it. Public; no authentication required.
func (s *InviteService) GetInviteDetails(ctx context.Context, token string) (*InviteDetails, error) {
	invite, err := s.store.Invitations.GetByIndex(ctx, "token", token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("invitation not found")
		}
		return nil, fmt.Errorf("look up invitation: %w", err)
	}

	details := &InviteDetails{
		ExpiresAt: invite.ExpiresAt,
		Valid:     invite.IsActive && !invite.IsExpired() && !invite.IsExhausted(),
	}
	if room, err := s.gateway.GetRoomByID(ctx, invite.RoomID); err == nil {
		details.RoomName = room.Name
	}
	if creator, err := s.store.Users.Get(ctx, invite.CreatedBy); err == nil {
		details.InvitedBy = creator.Name()
	}
	return details, nil
}

// ListInvites returns a room's invitations. Owner only.
func (s *InviteService) ListInvites(ctx context.Context, userID, roomID string) ([]*InviteResponse, error) {
	room, err := s.gateway.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != userID {
		return nil, domainerrors.Forbidden("only the room owner can list invitations")
	}

	invites, err := store.Collect(s.store.Invitations.ListByIndex(ctx, "room", roomID))
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}

	out := make([]*InviteResponse, 0, len(invites))
	for _, invite := range invites {
		out = append(out, &InviteResponse{
			Invitation: invite,
			URL:        s.InviteURL(invite.Token),
		})
	}
	return out, nil
}

// RevokeInvite deactivates an invitation ahead of its limits. Owner or
// the member who created it.
func (s *InviteService) RevokeInvite(ctx context.Context, userID, inviteID string) error {
	invite, err := s.store.Invitations.Get(ctx, inviteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("invitation not found")
		}
		return fmt.Errorf("look up invitation: %w", err)
	}

	room, err := s.gateway.GetRoomByID(ctx, invite.RoomID)
	if err != nil {
		return err
	}
	if room.OwnerID != userID && invite.CreatedBy != userID {
		return domainerrors.Forbidden("only the room owner or the invitation's creator can revoke it")
	}

	s.deactivate(ctx, invite)
	return nil
}

// deactivate flips the invitation off and persists it. The transition
// is one-way, so a write failure only delays the flip until the next
// attempt trips over the same limit.
func (s *InviteService) deactivate(ctx context.Context, invite *domain.Invitation) {
	if !invite.IsActive {
		return
	}
	invite.Deactivate()
	if err := s.store.Invitations.Update(ctx, invite.ID, invite); err != nil {
		s.logger.Warn("Failed to deactivate invitation", "invite_id", invite.ID, "error", err)
	}
}

// generateInviteToken returns a URL-safe random token. Prefers the
// OS entropy source; if that fails it falls back to math/rand/v2,
// which weakens unguessability but keeps invitations working.
func generateInviteToken(logger *slog.Logger) string {
	b := make([]byte, inviteTokenSize)
	if _, err := cryptorand.Read(b); err != nil {
		logger.Warn("Secure random unavailable, using fallback token source", "error", err)
		for i := range b {
			b[i] = byte(mathrand.IntN(256))
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
