package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tallyapp/tally-server/internal/color"
	"github.com/tallyapp/tally-server/internal/domain"
	domainerrors "github.com/tallyapp/tally-server/internal/errors"
	"github.com/tallyapp/tally-server/internal/media/images"
	"github.com/tallyapp/tally-server/internal/store"
)

// ProfileService manages the public half of user accounts.
type ProfileService struct {
	store  *store.Store
	images *images.Storage
	logger *slog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(st *store.Store, imgStorage *images.Storage, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		store:  st,
		images: imgStorage,
		logger: logger,
	}
}

// UpdateProfileRequest contains the editable profile fields.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=100"`
	Tagline     string `json:"tagline" validate:"max=200"`
}

// ProfileResponse is a profile plus the derived avatar color for
// clients rendering a generated avatar.
type ProfileResponse struct {
	*domain.Profile
	Name        string `json:"name"`
	AvatarColor string `json:"avatar_color"`
}

// GetProfile returns a user's profile.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*ProfileResponse, error) {
	profile, err := s.store.Profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("profile not found")
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return s.respond(ctx, profile), nil
}

// UpdateProfile updates the caller's own profile fields.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*ProfileResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	profile, err := s.store.Profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("profile not found")
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	profile.Tagline = req.Tagline
	profile.Touch()
	if err := s.store.Profiles.Update(ctx, userID, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if req.DisplayName != "" {
		user, err := s.store.Users.Get(ctx, userID)
		if err == nil {
			user.DisplayName = req.DisplayName
			user.Touch()
			if err := s.store.Users.Update(ctx, userID, user); err != nil {
				s.logger.Warn("Failed to update display name", "user_id", userID, "error", err)
			}
		}
	}

	return s.respond(ctx, profile), nil
}

// UploadAvatar stores an avatar image for the user and switches their
// profile to it. A BlurHash placeholder is computed for clients to show
// while the image loads.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, imgData []byte) (*ProfileResponse, error) {
	profile, err := s.store.Profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("profile not found")
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	blurHash, err := images.ComputeBlurHash(imgData)
	if err != nil {
		return nil, domainerrors.Validation("image could not be decoded")
	}

	if err := s.images.Save(userID, imgData); err != nil {
		return nil, fmt.Errorf("save avatar: %w", err)
	}

	profile.AvatarType = domain.AvatarImage
	profile.AvatarPath = s.images.Path(userID)
	profile.BlurHash = blurHash
	profile.Touch()

	if err := s.store.Profiles.Update(ctx, userID, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.logger.Info("Avatar uploaded", "user_id", userID, "blurhash", blurHash)

	return s.respond(ctx, profile), nil
}

// RemoveAvatar deletes the uploaded image and reverts to the generated
// color avatar.
func (s *ProfileService) RemoveAvatar(ctx context.Context, userID string) (*ProfileResponse, error) {
	profile, err := s.store.Profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("profile not found")
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if err := s.images.Delete(userID); err != nil {
		s.logger.Warn("Failed to delete avatar image", "user_id", userID, "error", err)
	}

	profile.AvatarType = domain.AvatarAuto
	profile.AvatarPath = ""
	profile.BlurHash = ""
	profile.Touch()

	if err := s.store.Profiles.Update(ctx, userID, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return s.respond(ctx, profile), nil
}

// GetAvatarImage returns the raw stored avatar bytes and a content hash
// for cache validation.
func (s *ProfileService) GetAvatarImage(_ context.Context, userID string) ([]byte, string, error) {
	if !s.images.Exists(userID) {
		return nil, "", domainerrors.NotFound("no avatar image for this user")
	}
	data, err := s.images.Get(userID)
	if err != nil {
		return nil, "", fmt.Errorf("read avatar: %w", err)
	}
	hash, err := s.images.Hash(userID)
	if err != nil {
		return nil, "", fmt.Errorf("hash avatar: %w", err)
	}
	return data, hash, nil
}

func (s *ProfileService) respond(ctx context.Context, profile *domain.Profile) *ProfileResponse {
	resp := &ProfileResponse{
		Profile:     profile,
		AvatarColor: color.ForUser(profile.UserID),
	}
	if user, err := s.store.Users.Get(ctx, profile.UserID); err == nil {
		resp.Name = user.Name()
	}
	return resp
}
