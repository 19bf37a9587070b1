package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/tallyapp/tally-server/internal/errors"
)

func TestCreateInviteRequiresMembership(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	owner := registerUser(t, env, "owner@example.com")
	outsider := registerUser(t, env, "outsider@example.com")
	room := createRoom(t, env, owner, "game-night")

	_, err := env.invites.CreateInvite(ctx, outsider, CreateInviteRequest{RoomID: room.Room.ID})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	// The owner and any member can invite.
	resp, err := env.invites.CreateInvite(ctx, owner, CreateInviteRequest{RoomID: room.Room.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "https://tally.example.com/join?invite="+resp.Token, resp.URL)
	assert.True(t, resp.IsActive)
}

func TestRedeemInviteGrantsMembership(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	owner := registerUser(t, env, "owner@example.com")
	joiner := registerUser(t, env, "joiner@example.com")
	room := createRoom(t, env, owner, "game-night")

	invite, err := env.invites.CreateInvite(ctx, owner, CreateInviteRequest{RoomID: room.Room.ID})
	require.NoError(t, err)

	resp, err := env.invites.RedeemInvite(ctx, joiner, invite.Token)
	require.NoError(t, err)
	assert.Equal(t, room.Room.ID, resp.Room.ID)
	assert.False(t, resp.AlreadyMember)

	member, err := env.gateway.IsMember(ctx, room.Room.ID, joiner)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestRedeemInviteSingleUseLimit(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	owner := registerUser(t, env, "owner@example.com")
	first := registerUser(t, env, "first@example.com")
	second := registerUser(t, env, "second@example.com")
	room := createRoom(t, env, owner, "game-night")

	maxUses := 1
	invite, err := env.invites.CreateInvite(ctx, owner, CreateInviteRequest{
		RoomID:  room.Room.ID,
		MaxUses: &maxUses,
	})
	require.NoError(t, err)

	// First redemption succeeds and uses up the cap.
	_, err = env.invites.RedeemInvite(ctx, first, invite.Token)
	require.NoError(t, err)

	stored, err := env.store.Invitations.Get(ctx, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)
	assert.True(t, stored.IsActive, "deactivation is lazy; the cap trips on the next attempt")

	// Second redemption fails and flips the invitation inactive.
	_, err = env.invites.RedeemInvite(ctx, second, invite.Token)
	assert.ErrorIs(t, err, domainerrors.ErrUsageLimit)

	stored, err = env.store.Invitations.Get(ctx, invite.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, 1, stored.UsedCount, "failed attempts don't count")

	member, err := env.gateway.IsMember(ctx, room.Room.ID, second)
	require.NoError(t, err)
	assert.False(t, member)

	// Once deactivated, the token reads as if it never existed.
	_, err = env.invites.RedeemInvite(ctx, second, invite.Token)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestRedeemInviteFailureLeavesCountUntouched(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	owner := registerUser(t, env, "owner@example.com")
	joiner := registerUser(t, env, "joiner@example.com")
	room := createRoom(t, env, owner, "game-night")

	invite, err := env.invites.CreateInvite(ctx, owner, CreateInviteRequest{RoomID: room.Room.ID})
	require.NoError(t, err)

	// A redemption that fails before the membership grant must not
	// burn a use.
	require.NoError(t, env.store.Rooms.Delete(ctx, room.Room.ID))

	_, err = env.invites.RedeemInvite(ctx, joiner, invite.Token)
	assert.Error(t, err)

	stored, err := env.store.Invitations.Get(ctx, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.UsedCount)
}

func TestRedeemInviteExpiredLazyDeactivation(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	owner := registerUser(t, env, "owner@example.com")
	joiner := registerUser(t, env, "joiner@example.com")
	room := createRoom(t, env, owner, "game-night")

	invite, err := env.invites.CreateInvite(ctx, owner, CreateInviteRequest{RoomID: room.Room.ID})
	require.NoError(t, err)

	// Push the expiry into the past while leaving it active at rest.
	stored, err := env.store.Invitations.Get(ctx, invite.ID)
	require.NoError(t, err)
	stored.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, env.store.Invitations.Update(ctx, stored.ID, stored))

	_, err = env.invites.RedeemInvite(ctx, joiner, invite.Token)
	assert.ErrorIs(t, err, domainerrors.ErrExpired)

	stored, err = env.store.Invitations.Get(ctx, invite.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive, "failed attempt flips the invitation inactive")
}

func TestRedeemInviteCountsExistingMembers(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	owner := registerUser(t, env, "owner@example.com")
	room := createRoom(t, env, owner, "game-night")

	invite, err := env.invites.CreateInvite(ctx, owner, CreateInviteRequest{RoomID: room.Room.ID})
	require.NoError(t, err)

	// The owner is already a member; redeeming still counts a use.
	resp, err := env.invites.RedeemInvite(ctx, owner, invite.Token)
	require.NoError(t, err)
	assert.True(t, resp.AlreadyMember)

	stored, err := env.store.Invitations.Get(ctx, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)
}

func TestRedeemInviteUnknownToken(t *testing.T) {
	env := setupTest(t)
	user := registerUser(t, env, "user@example.com")

	_, err := env.invites.RedeemInvite(context.Background(), user, "no-such-token")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestRevokeInvite(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	owner := registerUser(t, env, "owner@example.com")
	joiner := registerUser(t, env, "joiner@example.com")
	room := createRoom(t, env, owner, "game-night")

	invite, err := env.invites.CreateInvite(ctx, owner, CreateInviteRequest{RoomID: room.Room.ID})
	require.NoError(t, err)

	// Someone who neither owns the room nor created the invite cannot revoke.
	err = env.invites.RevokeInvite(ctx, joiner, invite.ID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	require.NoError(t, env.invites.RevokeInvite(ctx, owner, invite.ID))

	// A revoked invitation behaves as if it never existed.
	_, err = env.invites.RedeemInvite(ctx, joiner, invite.Token)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestListInvitesOwnerOnly(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	owner := registerUser(t, env, "owner@example.com")
	member := registerUser(t, env, "member@example.com")
	room := createRoom(t, env, owner, "game-night")

	_, err := env.invites.CreateInvite(ctx, owner, CreateInviteRequest{RoomID: room.Room.ID})
	require.NoError(t, err)

	_, err = env.invites.ListInvites(ctx, member, room.Room.ID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	invites, err := env.invites.ListInvites(ctx, owner, room.Room.ID)
	require.NoError(t, err)
	assert.Len(t, invites, 1)
}
