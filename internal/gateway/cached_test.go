package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyapp/tally-server/internal/domain"
	domainerrors "github.com/tallyapp/tally-server/internal/errors"
)

// fakeGateway counts calls so tests can observe cache hits.
type fakeGateway struct {
	rooms       map[string]*domain.Room
	members     map[string]bool
	fail        bool
	roomCalls   int
	memberCalls int
}

func (f *fakeGateway) GetRoom(_ context.Context, name string) (*domain.Room, error) {
	f.roomCalls++
	if f.fail {
		return nil, domainerrors.Unavailable("backend down")
	}
	room, ok := f.rooms[name]
	if !ok {
		return nil, domainerrors.NotFound("room not found")
	}
	return room, nil
}

func (f *fakeGateway) GetRoomByID(_ context.Context, roomID string) (*domain.Room, error) {
	f.roomCalls++
	for _, room := range f.rooms {
		if room.ID == roomID {
			return room, nil
		}
	}
	return nil, domainerrors.NotFound("room not found")
}

func (f *fakeGateway) IsMember(_ context.Context, roomID, userID string) (bool, error) {
	f.memberCalls++
	return f.members[roomID+"/"+userID], nil
}

func (f *fakeGateway) AddMember(_ context.Context, roomID, userID string, _ domain.MemberRole) error {
	f.members[roomID+"/"+userID] = true
	return nil
}

func (f *fakeGateway) RemoveMember(_ context.Context, roomID, userID string) error {
	delete(f.members, roomID+"/"+userID)
	return nil
}

func (f *fakeGateway) GetUserProfile(_ context.Context, _ string) (*domain.Profile, error) {
	return nil, domainerrors.NotFound("profile not found")
}

func newFake() *fakeGateway {
	room := &domain.Room{Name: "game-night", SecretKey: "k1"}
	room.ID = "room-1"
	return &fakeGateway{
		rooms:   map[string]*domain.Room{"game-night": room},
		members: map[string]bool{},
	}
}

func TestCachedGetRoomMemoizes(t *testing.T) {
	fake := newFake()
	cached := NewCached(fake, time.Minute, 0)
	defer cached.Stop()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		room, err := cached.GetRoom(ctx, "game-night")
		require.NoError(t, err)
		assert.Equal(t, "room-1", room.ID)
	}
	assert.Equal(t, 1, fake.roomCalls, "repeat reads answer from cache")

	// The by-name read also primed the by-ID key.
	_, err := cached.GetRoomByID(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.roomCalls)
}

func TestCachedErrorsNotCached(t *testing.T) {
	fake := newFake()
	fake.fail = true
	cached := NewCached(fake, time.Minute, 0)
	defer cached.Stop()

	ctx := context.Background()
	_, err := cached.GetRoom(ctx, "game-night")
	require.ErrorIs(t, err, domainerrors.ErrUnavailable)

	fake.fail = false
	room, err := cached.GetRoom(ctx, "game-night")
	require.NoError(t, err)
	assert.Equal(t, "room-1", room.ID)
	assert.Equal(t, 2, fake.roomCalls)
}

func TestCachedMembershipInvalidatedOnWrite(t *testing.T) {
	fake := newFake()
	cached := NewCached(fake, time.Minute, 0)
	defer cached.Stop()

	ctx := context.Background()
	member, err := cached.IsMember(ctx, "room-1", "user-1")
	require.NoError(t, err)
	assert.False(t, member)

	require.NoError(t, cached.AddMember(ctx, "room-1", "user-1", domain.RoleMember))

	member, err = cached.IsMember(ctx, "room-1", "user-1")
	require.NoError(t, err)
	assert.True(t, member, "grant invalidates the stale negative entry")

	require.NoError(t, cached.RemoveMember(ctx, "room-1", "user-1"))

	member, err = cached.IsMember(ctx, "room-1", "user-1")
	require.NoError(t, err)
	assert.False(t, member, "revoke invalidates the stale positive entry")
}

func TestCachedEntriesExpire(t *testing.T) {
	fake := newFake()
	cached := NewCached(fake, 10*time.Millisecond, 0)
	defer cached.Stop()

	ctx := context.Background()
	_, err := cached.GetRoom(ctx, "game-night")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = cached.GetRoom(ctx, "game-night")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.roomCalls, "expired entry goes back to the backend")
}
