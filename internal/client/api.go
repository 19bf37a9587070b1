package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// User is an account as returned by the server.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// AuthResult holds the token pair returned by register, login and refresh.
type AuthResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Option is one entry of a room's catalog.
type Option struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Emoji  string `json:"emoji"`
	Points int    `json:"points"`
}

// Room is a room with its option catalog.
type Room struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	SecretKey string   `json:"secret_key"`
	OwnerID   string   `json:"owner_id"`
	TypeName  string   `json:"type_name"`
	Options   []Option `json:"options"`
}

// RoomSummary is a room without its catalog.
type RoomSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SecretKey string `json:"secret_key"`
	OwnerID   string `json:"owner_id"`
}

// AggregatedItem is one netted per-option count on the scoreboard.
type AggregatedItem struct {
	OptionID    string `json:"option_id"`
	Option      Option `json:"option"`
	Count       int    `json:"count"`
	TotalPoints int    `json:"total_points"`
}

// UserScore is one member's tally.
type UserScore struct {
	UserID      string           `json:"user_id"`
	Name        string           `json:"name"`
	Items       []AggregatedItem `json:"items"`
	TotalPoints int              `json:"total_points"`
}

// Scoreboard is the whole room's tally, highest total first.
type Scoreboard struct {
	RoomID string      `json:"room_id"`
	Scores []UserScore `json:"scores"`
}

// Item is one recorded event.
type Item struct {
	ID        string    `json:"id"`
	OptionID  string    `json:"option_id"`
	Count     int       `json:"count"`
	IsRemoved bool      `json:"is_removed"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Invite is a created invitation with its shareable URL.
type Invite struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxUses   *int      `json:"max_uses"`
	UsedCount int       `json:"used_count"`
}

// InviteDetails is the public preview of an invitation.
type InviteDetails struct {
	RoomName  string    `json:"room_name"`
	InvitedBy string    `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
	Valid     bool      `json:"valid"`
}

// RedeemResult is what redeeming an invitation returns.
type RedeemResult struct {
	Room          Room `json:"room"`
	AlreadyMember bool `json:"already_member"`
}

// Register creates an account and returns its first token pair.
func (c *Client) Register(ctx context.Context, email, password, displayName string) (*AuthResult, error) {
	body := map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	}
	out := &AuthResult{}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	out := &AuthResult{}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Refresh rotates a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	body := map[string]string{"refresh_token": refreshToken}
	out := &AuthResult{}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/refresh", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Logout revokes a refresh token.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout", body, nil)
}

// CreateRoom creates a room with its option catalog.
func (c *Client) CreateRoom(ctx context.Context, name, secretKey, typeName string, options []Option) (*Room, error) {
	type optionReq struct {
		Name   string `json:"name"`
		Emoji  string `json:"emoji"`
		Points int    `json:"points"`
	}
	opts := make([]optionReq, 0, len(options))
	for _, o := range options {
		opts = append(opts, optionReq{Name: o.Name, Emoji: o.Emoji, Points: o.Points})
	}
	body := map[string]any{
		"name":       name,
		"secret_key": secretKey,
		"type_name":  typeName,
		"options":    opts,
	}
	out := &Room{}
	if err := c.do(ctx, http.MethodPost, "/api/v1/rooms", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// JoinRoom joins a room by name and secret key.
func (c *Client) JoinRoom(ctx context.Context, name, secretKey string) (*Room, error) {
	body := map[string]string{"name": name, "secret_key": secretKey}
	out := &Room{}
	if err := c.do(ctx, http.MethodPost, "/api/v1/rooms/join", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRooms returns the rooms the caller belongs to.
func (c *Client) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	var out struct {
		Rooms []RoomSummary `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

// GetRoom returns a room by name, with its catalog.
func (c *Client) GetRoom(ctx context.Context, name string) (*Room, error) {
	out := &Room{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/rooms/by-name/"+url.PathEscape(name), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// LeaveRoom revokes the caller's membership.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/rooms/"+url.PathEscape(roomID)+"/leave", nil, nil)
}

// AddItem records a count of an option for the caller.
func (c *Client) AddItem(ctx context.Context, roomID, optionID string, count int, comment string) (*Item, error) {
	body := map[string]any{"option_id": optionID, "count": count, "comment": comment}
	out := &Item{}
	if err := c.do(ctx, http.MethodPost, "/api/v1/rooms/"+url.PathEscape(roomID)+"/items", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveItem records a removal event for the caller.
func (c *Client) RemoveItem(ctx context.Context, roomID, optionID string, count int, comment string) (*Item, error) {
	body := map[string]any{"option_id": optionID, "count": count, "comment": comment}
	out := &Item{}
	if err := c.do(ctx, http.MethodPost, "/api/v1/rooms/"+url.PathEscape(roomID)+"/items/remove", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetScoreboard returns the room's current scoreboard.
func (c *Client) GetScoreboard(ctx context.Context, roomID string) (*Scoreboard, error) {
	out := &Scoreboard{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/rooms/"+url.PathEscape(roomID)+"/scoreboard", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateInvite creates a shareable invitation for a room.
func (c *Client) CreateInvite(ctx context.Context, roomID, expiresIn string, maxUses *int) (*Invite, error) {
	body := map[string]any{"room_id": roomID}
	if expiresIn != "" {
		body["expires_in"] = expiresIn
	}
	if maxUses != nil {
		body["max_uses"] = *maxUses
	}
	out := &Invite{}
	if err := c.do(ctx, http.MethodPost, "/api/v1/invitations", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetInviteDetails previews an invitation without redeeming it.
func (c *Client) GetInviteDetails(ctx context.Context, token string) (*InviteDetails, error) {
	out := &InviteDetails{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/invitations/"+url.PathEscape(token), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RedeemInvite joins the invitation's room.
func (c *Client) RedeemInvite(ctx context.Context, token string) (*RedeemResult, error) {
	out := &RedeemResult{}
	if err := c.do(ctx, http.MethodPost, "/api/v1/invitations/"+url.PathEscape(token)+"/redeem", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}
