package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyapp/tally-server/internal/domain"
	"github.com/tallyapp/tally-server/internal/sse"
)

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	events []any
}

func (r *recordingEmitter) Emit(event any) {
	r.events = append(r.events, event)
}

func testStore(t *testing.T) (*Store, *recordingEmitter) {
	t.Helper()
	emitter := &recordingEmitter{}
	s, err := Open(t.TempDir(), nil, emitter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, emitter
}

func newUser(id, email string) *domain.User {
	u := &domain.User{Email: email, DisplayName: "Test"}
	u.ID = id
	u.InitTimestamps()
	return u
}

func TestEntity_CreateGetRoundTrip(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	user := newUser("u1", "alice@example.com")
	require.NoError(t, s.Users.Create(ctx, user.ID, user))

	got, err := s.Users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "u1", got.ID)
}

func TestEntity_CreateDuplicateID(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users.Create(ctx, "u1", newUser("u1", "a@example.com")))
	err := s.Users.Create(ctx, "u1", newUser("u1", "b@example.com"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestEntity_GetMissing(t *testing.T) {
	s, _ := testStore(t)

	_, err := s.Users.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntity_UniqueIndexConflict(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users.Create(ctx, "u1", newUser("u1", "alice@example.com")))

	// Same email, different ID.
	err := s.Users.Create(ctx, "u2", newUser("u2", "alice@example.com"))
	assert.ErrorIs(t, err, ErrIndexConflict)
}

func TestEntity_UniqueIndexNormalization(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users.Create(ctx, "u1", newUser("u1", "Alice@Example.com")))

	got, err := s.Users.GetByIndex(ctx, "email", "alice@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	// Case variants conflict too.
	err = s.Users.Create(ctx, "u2", newUser("u2", "ALICE@example.COM"))
	assert.ErrorIs(t, err, ErrIndexConflict)
}

func TestEntity_UpdateMovesIndexes(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	user := newUser("u1", "old@example.com")
	require.NoError(t, s.Users.Create(ctx, user.ID, user))

	user.Email = "new@example.com"
	require.NoError(t, s.Users.Update(ctx, user.ID, user))

	_, err := s.Users.GetByIndex(ctx, "email", "old@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.Users.GetByIndex(ctx, "email", "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	// The freed slot is reusable.
	require.NoError(t, s.Users.Create(ctx, "u2", newUser("u2", "old@example.com")))
}

func TestEntity_UpdateMissing(t *testing.T) {
	s, _ := testStore(t)

	err := s.Users.Update(context.Background(), "nope", newUser("nope", "x@example.com"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntity_DeleteClearsIndexes(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users.Create(ctx, "u1", newUser("u1", "alice@example.com")))
	require.NoError(t, s.Users.Delete(ctx, "u1"))

	_, err := s.Users.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Users.GetByIndex(ctx, "email", "alice@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	// Idempotent.
	assert.NoError(t, s.Users.Delete(ctx, "u1"))
}

func TestEntity_ListByIndex(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	for i, roomID := range []string{"room-1", "room-1", "room-2"} {
		m := &domain.Member{RoomID: roomID, UserID: fmt.Sprintf("u%d", i), Role: domain.RoleMember}
		m.ID = fmt.Sprintf("m%d", i)
		m.InitTimestamps()
		require.NoError(t, s.Members.Create(ctx, m.ID, m))
	}

	members, err := Collect(s.Members.ListByIndex(ctx, "room", "room-1"))
	require.NoError(t, err)
	assert.Len(t, members, 2)

	members, err = Collect(s.Members.ListByIndex(ctx, "room", "room-3"))
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestEntity_ListSkipsIndexKeys(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users.Create(ctx, "u1", newUser("u1", "a@example.com")))
	require.NoError(t, s.Users.Create(ctx, "u2", newUser("u2", "b@example.com")))

	users, err := Collect(s.Users.List(ctx))
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestEntity_EmitsChangeEvents(t *testing.T) {
	s, emitter := testStore(t)
	ctx := context.Background()

	item := &domain.Item{RoomID: "room-1", UserID: "u1", OptionID: "opt-1", Count: 2}
	item.ID = "i1"
	item.InitTimestamps()
	require.NoError(t, s.Items.Create(ctx, item.ID, item))

	require.Len(t, emitter.events, 1)
	ev, ok := emitter.events[0].(sse.RoomEvent)
	require.True(t, ok)
	assert.Equal(t, "item.create", ev.Type)
	assert.Equal(t, "room-1", ev.RoomID)
	assert.Equal(t, "u1", ev.UserID)

	// Users carry no event factory; nothing is emitted for them.
	require.NoError(t, s.Users.Create(ctx, "u1", newUser("u1", "a@example.com")))
	assert.Len(t, emitter.events, 1)
}

func TestEntity_CanceledContext(t *testing.T) {
	s, _ := testStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Users.Create(ctx, "u1", newUser("u1", "a@example.com"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Users.Get(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
}
