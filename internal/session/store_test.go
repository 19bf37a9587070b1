package session

import (
	"encoding/json/v2"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyapp/tally-server/internal/domain"
	"github.com/tallyapp/tally-server/internal/logger"
)

func testStore(t *testing.T) (*Store, *MemoryStorage) {
	t.Helper()
	storage := NewMemoryStorage()
	log := logger.New(logger.Config{Writer: io.Discard, Level: slog.LevelError})
	return NewStore(storage, log.Logger), storage
}

func joined(name, secret string) domain.JoinedRoomRef {
	return domain.JoinedRoomRef{
		Name:      name,
		SecretKey: secret,
		JoinedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, storage := testStore(t)

	sess := domain.NewUserSession()
	sess.JoinedRooms = append(sess.JoinedRooms, joined("game-night", "k1"))
	sess.CurrentRoomName = "game-night"

	require.True(t, store.Save(sess))

	fresh := NewStore(storage, store.logger).Load()
	assert.Equal(t, sess, fresh)
}

func TestLoadEmptyStorage(t *testing.T) {
	store, storage := testStore(t)

	got := store.Load()
	assert.Empty(t, got.JoinedRooms)
	assert.Empty(t, got.CurrentRoomName)

	// The empty session is persisted so the next load sees it too.
	data, err := storage.Read(SlotPrimary)
	require.NoError(t, err)
	var persisted domain.UserSession
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Empty(t, persisted.JoinedRooms)
}

func TestLoadCorruptPrimaryFallsBackToBackup(t *testing.T) {
	store, storage := testStore(t)

	backup := domain.NewUserSession()
	backup.JoinedRooms = append(backup.JoinedRooms, joined("poker", "k2"))
	env := backupEnvelope{Session: backup, Timestamp: time.Now(), Version: backupVersion}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, storage.Write(SlotBackup, data))
	require.NoError(t, storage.Write(SlotPrimary, []byte("{not json")))

	got := store.Load()
	require.Len(t, got.JoinedRooms, 1)
	assert.Equal(t, "poker", got.JoinedRooms[0].Name)

	// Backup is promoted: primary now holds the recovered session.
	raw, err := storage.Read(SlotPrimary)
	require.NoError(t, err)
	var promoted domain.UserSession
	require.NoError(t, json.Unmarshal(raw, &promoted))
	assert.Equal(t, backup, &promoted)
}

func TestLoadBothSlotsBadDegradesToEmpty(t *testing.T) {
	store, storage := testStore(t)

	require.NoError(t, storage.Write(SlotPrimary, []byte("garbage")))
	require.NoError(t, storage.Write(SlotBackup, []byte("more garbage")))

	got := store.Load()
	assert.Empty(t, got.JoinedRooms)
	assert.Empty(t, got.CurrentRoomName)
}

func TestLoadRejectsStructurallyInvalidPrimary(t *testing.T) {
	store, storage := testStore(t)

	// Valid JSON, but current room does not match any joined ref.
	bad := &domain.UserSession{JoinedRooms: []domain.JoinedRoomRef{}, CurrentRoomName: "ghost"}
	data, err := json.Marshal(bad)
	require.NoError(t, err)
	require.NoError(t, storage.Write(SlotPrimary, data))

	got := store.Load()
	assert.Empty(t, got.CurrentRoomName)
}

func TestSaveInvalidSessionRejected(t *testing.T) {
	store, storage := testStore(t)

	bad := &domain.UserSession{
		JoinedRooms: []domain.JoinedRoomRef{{Name: "", SecretKey: "k"}},
	}
	assert.False(t, store.Save(bad))

	_, err := storage.Read(SlotPrimary)
	assert.ErrorIs(t, err, ErrSlotEmpty, "rejected save must not write")
}

func TestSaveRotatesPreviousIntoBackup(t *testing.T) {
	store, storage := testStore(t)

	first := domain.NewUserSession()
	first.JoinedRooms = append(first.JoinedRooms, joined("alpha", "k1"))
	require.True(t, store.Save(first))

	second := domain.NewUserSession()
	second.JoinedRooms = append(second.JoinedRooms, joined("beta", "k2"))
	require.True(t, store.Save(second))

	raw, err := storage.Read(SlotBackup)
	require.NoError(t, err)
	var env backupEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Len(t, env.Session.JoinedRooms, 1)
	assert.Equal(t, "alpha", env.Session.JoinedRooms[0].Name)
	assert.Equal(t, backupVersion, env.Version)
	assert.False(t, env.Timestamp.IsZero())
}

func TestAddRoomAppendsAndUpserts(t *testing.T) {
	store, _ := testStore(t)
	store.Load()

	require.True(t, store.AddRoom(joined("alpha", "k1")))
	require.True(t, store.AddRoom(joined("beta", "k2")))

	sess := store.Current()
	require.Len(t, sess.JoinedRooms, 2)
	assert.Nil(t, sess.JoinedRooms[0].LastVisited)

	// Same (name, secret) pair only refreshes last visited.
	require.True(t, store.AddRoom(joined("alpha", "k1")))
	sess = store.Current()
	require.Len(t, sess.JoinedRooms, 2)
	assert.NotNil(t, sess.JoinedRooms[0].LastVisited)

	// Same name with a different secret is a distinct join.
	require.True(t, store.AddRoom(joined("alpha", "other")))
	assert.Len(t, store.Current().JoinedRooms, 3)
}

func TestAddRoomRejectsIncompleteRef(t *testing.T) {
	store, _ := testStore(t)
	store.Load()

	assert.False(t, store.AddRoom(domain.JoinedRoomRef{Name: "x", SecretKey: "k"}))
	assert.False(t, store.AddRoom(domain.JoinedRoomRef{Name: "", SecretKey: "k", JoinedAt: time.Now()}))
	assert.Empty(t, store.Current().JoinedRooms)
}

func TestRemoveRoomClearsCurrentSelection(t *testing.T) {
	store, _ := testStore(t)
	store.Load()

	require.True(t, store.AddRoom(joined("A", "k1")))
	require.True(t, store.SetCurrentRoom("A"))

	require.True(t, store.RemoveRoom("A"))

	sess := store.Current()
	assert.Empty(t, sess.JoinedRooms)
	assert.Empty(t, sess.CurrentRoomName)
}

func TestRemoveRoomUnknownNameIsNoop(t *testing.T) {
	store, _ := testStore(t)
	store.Load()
	require.True(t, store.AddRoom(joined("A", "k1")))

	assert.True(t, store.RemoveRoom("nope"))
	assert.Len(t, store.Current().JoinedRooms, 1)
}

func TestSetCurrentRoom(t *testing.T) {
	store, _ := testStore(t)
	store.Load()
	require.True(t, store.AddRoom(joined("A", "k1")))

	assert.False(t, store.SetCurrentRoom("unjoined"))
	assert.Empty(t, store.Current().CurrentRoomName)

	assert.True(t, store.SetCurrentRoom("A"))
	sess := store.Current()
	assert.Equal(t, "A", sess.CurrentRoomName)
	assert.NotNil(t, sess.JoinedRooms[0].LastVisited)

	// Empty name clears the selection.
	assert.True(t, store.SetCurrentRoom(""))
	assert.Empty(t, store.Current().CurrentRoomName)
}

func TestSubscribeNotifiedInOrder(t *testing.T) {
	store, _ := testStore(t)
	store.Load()

	var order []string
	store.Subscribe(func(domain.UserSession) { order = append(order, "first") })
	store.Subscribe(func(domain.UserSession) { order = append(order, "second") })

	require.True(t, store.AddRoom(joined("A", "k1")))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSubscribePanickingListenerIsolated(t *testing.T) {
	store, _ := testStore(t)
	store.Load()

	called := false
	store.Subscribe(func(domain.UserSession) { panic("boom") })
	store.Subscribe(func(domain.UserSession) { called = true })

	require.True(t, store.AddRoom(joined("A", "k1")))
	assert.True(t, called, "later listeners still run after a panic")
}

func TestUnsubscribe(t *testing.T) {
	store, _ := testStore(t)
	store.Load()

	calls := 0
	unsubscribe := store.Subscribe(func(domain.UserSession) { calls++ })

	require.True(t, store.AddRoom(joined("A", "k1")))
	unsubscribe()
	unsubscribe() // second call is harmless
	require.True(t, store.AddRoom(joined("B", "k2")))

	assert.Equal(t, 1, calls)
}

func TestListenerReceivesCopy(t *testing.T) {
	store, _ := testStore(t)
	store.Load()

	store.Subscribe(func(s domain.UserSession) {
		s.JoinedRooms = nil // mutating the copy must not affect the store
	})

	require.True(t, store.AddRoom(joined("A", "k1")))
	assert.Len(t, store.Current().JoinedRooms, 1)
}

func TestNilLoggerDegradesQuietly(t *testing.T) {
	store := NewStore(NewMemoryStorage(), nil)
	store.Load()

	// Every failure path logs and degrades, so none of them may
	// depend on a caller-supplied logger.
	assert.False(t, store.SetCurrentRoom("not-joined"))
	assert.False(t, store.AddRoom(domain.JoinedRoomRef{Name: "", SecretKey: "k"}))
	require.True(t, store.AddRoom(joined("game-night", "k1")))
	assert.True(t, store.SetCurrentRoom("game-night"))
}
