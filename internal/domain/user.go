package domain

import "time"

// User is an account on the server.
type User struct {
	Timestamps
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// Name returns the best display name available for the user.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// AvatarType selects between a generated color avatar and an uploaded image.
type AvatarType string

// Avatar types.
const (
	AvatarAuto  AvatarType = "auto"
	AvatarImage AvatarType = "image"
)

// Profile is the public-facing half of a user account.
type Profile struct {
	Timestamps
	UserID     string     `json:"user_id"`
	AvatarType AvatarType `json:"avatar_type"`
	AvatarPath string     `json:"avatar_path,omitempty"`
	BlurHash   string     `json:"blur_hash,omitempty"`
	Tagline    string     `json:"tagline,omitempty"`
}

// RefreshToken is an opaque server-side session credential paired with
// the short-lived PASETO access token.
type RefreshToken struct {
	Timestamps
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the refresh token is past its lifetime.
func (r *RefreshToken) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}
