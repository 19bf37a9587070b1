package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/tallyapp/tally-server/internal/service"
)

func (s *Server) registerProfileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getMyProfile",
		Method:      http.MethodGet,
		Path:        "/api/v1/profile",
		Summary:     "Get my profile",
		Description: "Returns the authenticated user's profile",
		Tags:        []string{"Profile"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMyProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateMyProfile",
		Method:      http.MethodPatch,
		Path:        "/api/v1/profile",
		Summary:     "Update my profile",
		Description: "Updates the authenticated user's display name and tagline",
		Tags:        []string{"Profile"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateMyProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "uploadAvatar",
		Method:      http.MethodPost,
		Path:        "/api/v1/profile/avatar",
		Summary:     "Upload avatar image",
		Description: "Uploads a new avatar image for the authenticated user",
		Tags:        []string{"Profile"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUploadAvatar)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeAvatar",
		Method:      http.MethodDelete,
		Path:        "/api/v1/profile/avatar",
		Summary:     "Remove avatar image",
		Description: "Deletes the uploaded image and reverts to the generated color avatar",
		Tags:        []string{"Profile"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRemoveAvatar)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUserProfile",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}/profile",
		Summary:     "Get user profile",
		Description: "Returns another user's public profile",
		Tags:        []string{"Profile"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetUserProfile)
}

// === Request/Response Types ===

// ProfileResponse contains the public profile data.
type ProfileResponse struct {
	UserID      string `json:"user_id" doc:"User ID"`
	Name        string `json:"name" doc:"Display name"`
	AvatarType  string `json:"avatar_type" doc:"Avatar type (auto or image)"`
	AvatarPath  string `json:"avatar_path,omitempty" doc:"Avatar image path for image type"`
	AvatarColor string `json:"avatar_color" doc:"Avatar color for auto type"`
	BlurHash    string `json:"blur_hash,omitempty" doc:"BlurHash placeholder for the avatar image"`
	Tagline     string `json:"tagline,omitempty" doc:"User's tagline (max 200 chars)"`
}

// ProfileOutput wraps the profile response for Huma.
type ProfileOutput struct {
	Body ProfileResponse
}

// UpdateProfileInput contains the update request.
type UpdateProfileInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	Body          struct {
		DisplayName string `json:"display_name,omitempty" maxLength:"100" doc:"New display name"`
		Tagline     string `json:"tagline,omitempty" maxLength:"200" doc:"User tagline"`
	}
}

// UploadAvatarInput contains the avatar upload request.
type UploadAvatarInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ContentType   string `header:"Content-Type" doc:"Image content type"`
	RawBody       []byte
}

// GetUserProfileInput contains the user profile request.
type GetUserProfileInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"User ID"`
}

// === Handlers ===

func (s *Server) handleGetMyProfile(ctx context.Context, _ *AuthenticatedInput) (*ProfileOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.services.Profile.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: mapProfileResponse(profile)}, nil
}

func (s *Server) handleUpdateMyProfile(ctx context.Context, input *UpdateProfileInput) (*ProfileOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.services.Profile.UpdateProfile(ctx, userID, service.UpdateProfileRequest{
		DisplayName: input.Body.DisplayName,
		Tagline:     input.Body.Tagline,
	})
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: mapProfileResponse(profile)}, nil
}

func (s *Server) handleUploadAvatar(ctx context.Context, input *UploadAvatarInput) (*ProfileOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if !isValidImageType(input.ContentType) {
		return nil, huma.Error400BadRequest(
			fmt.Sprintf("invalid image type '%s', must be image/jpeg, image/png, image/gif, or image/webp", input.ContentType),
		)
	}

	profile, err := s.services.Profile.UploadAvatar(ctx, userID, input.RawBody)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: mapProfileResponse(profile)}, nil
}

func (s *Server) handleRemoveAvatar(ctx context.Context, _ *AuthenticatedInput) (*ProfileOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.services.Profile.RemoveAvatar(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: mapProfileResponse(profile)}, nil
}

func (s *Server) handleGetUserProfile(ctx context.Context, input *GetUserProfileInput) (*ProfileOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	profile, err := s.services.Profile.GetProfile(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: mapProfileResponse(profile)}, nil
}

func (s *Server) handleServeAvatar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	// Remove .jpg extension if present
	if len(id) > 4 && id[len(id)-4:] == ".jpg" {
		id = id[:len(id)-4]
	}

	data, hash, err := s.services.Profile.GetAvatarImage(r.Context(), id)
	if err != nil {
		http.Error(w, "avatar not found", http.StatusNotFound)
		return
	}

	etag := `"` + hash + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func mapProfileResponse(resp *service.ProfileResponse) ProfileResponse {
	return ProfileResponse{
		UserID:      resp.UserID,
		Name:        resp.Name,
		AvatarType:  string(resp.AvatarType),
		AvatarPath:  resp.AvatarPath,
		AvatarColor: resp.AvatarColor,
		BlurHash:    resp.BlurHash,
		Tagline:     resp.Tagline,
	}
}

// isValidImageType checks if the content type is a decodable image type.
// Handles content types with parameters (e.g., "image/jpeg; charset=utf-8").
func isValidImageType(contentType string) bool {
	mediaType := contentType
	if before, _, ok := strings.Cut(contentType, ";"); ok {
		mediaType = strings.TrimSpace(before)
	}

	switch mediaType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
