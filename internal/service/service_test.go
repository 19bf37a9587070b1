package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallyapp/tally-server/internal/auth"
	"github.com/tallyapp/tally-server/internal/gateway"
	"github.com/tallyapp/tally-server/internal/ratelimit"
	"github.com/tallyapp/tally-server/internal/store"
)

// testEnv bundles the services under test over a throwaway database.
type testEnv struct {
	store   *store.Store
	gateway gateway.Gateway
	auth    *AuthService
	rooms   *RoomService
	items   *ItemService
	invites *InviteService
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	s, err := store.Open(t.TempDir(), logger, store.NoopEmitter{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	authKey, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)

	tokenService, err := auth.NewTokenService(authKey, 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)

	limiter := ratelimit.New(100, 100)
	t.Cleanup(limiter.Stop)

	gw := gateway.NewStoreGateway(s)

	return &testEnv{
		store:   s,
		gateway: gw,
		auth:    NewAuthService(s, tokenService, limiter, logger),
		rooms:   NewRoomService(s, gw, logger),
		items:   NewItemService(s, gw, logger),
		invites: NewInviteService(s, gw, logger, "https://tally.example.com", "/join", 168*time.Hour),
	}
}

// registerUser creates an account and returns its user ID.
func registerUser(t *testing.T, env *testEnv, email string) string {
	t.Helper()
	resp, err := env.auth.Register(context.Background(), RegisterRequest{
		Email:       email,
		Password:    "hunter2hunter2",
		DisplayName: email,
	})
	require.NoError(t, err)
	return resp.User.ID
}

// createRoom creates a drinks room owned by ownerID and returns it.
func createRoom(t *testing.T, env *testEnv, ownerID, name string) *RoomResponse {
	t.Helper()
	resp, err := env.rooms.CreateRoom(context.Background(), ownerID, CreateRoomRequest{
		Name:      name,
		SecretKey: "secret-" + name,
		TypeName:  "Drinks",
		Options: []OptionInput{
			{Name: "Beer", Emoji: "🍺", Points: 5},
			{Name: "Wine", Emoji: "🍷", Points: 8},
		},
	})
	require.NoError(t, err)
	return resp
}
