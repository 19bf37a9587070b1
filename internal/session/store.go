// Package session owns the local device's joined-rooms state. The store
// is the sole authority for it: loads fall back to a backup copy before
// degrading to an empty session, and every successful save rotates the
// previous state into the backup slot first.
package session

import (
	"encoding/json/v2"
	"log/slog"
	"sync"
	"time"

	"github.com/tallyapp/tally-server/internal/domain"
)

const backupVersion = 1

// backupEnvelope wraps the backup slot. The version field is
// informational only; nothing branches on it.
type backupEnvelope struct {
	Session   *domain.UserSession `json:"session"`
	Timestamp time.Time           `json:"timestamp"`
	Version   int                 `json:"version"`
}

// Listener receives a copy of the session after every successful save.
type Listener func(domain.UserSession)

type registration struct {
	id       int
	listener Listener
}

// Store persists and publishes the device session. One instance per
// process, constructed at the composition root and passed to consumers.
// All methods are safe for concurrent use; none of them return errors.
// Failures degrade to an empty-but-valid session or a false return.
type Store struct {
	mu        sync.Mutex
	storage   Storage
	logger    *slog.Logger
	session   *domain.UserSession
	listeners []registration
	nextID    int
	now       func() time.Time
}

// NewStore creates a session store over the given storage. A nil
// logger discards; every method must stay panic-free on its
// degradation paths.
func NewStore(storage Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// Load reads the primary slot. If it is absent, malformed, or fails
// structural validation, the backup slot is tried; a valid backup is
// promoted to primary. When both fail an empty session is created,
// persisted, and returned. Load never fails from the caller's view.
func (s *Store) Load() *domain.UserSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess := s.readPrimary(); sess != nil {
		s.session = sess
		return sess.Clone()
	}

	if sess := s.readBackup(); sess != nil {
		s.logger.Warn("Primary session unusable, promoting backup")
		if err := s.writeSlot(SlotPrimary, sess); err != nil {
			s.logger.Error("Failed to promote backup session", "error", err)
		}
		s.session = sess
		return sess.Clone()
	}

	fresh := domain.NewUserSession()
	if err := s.writeSlot(SlotPrimary, fresh); err != nil {
		s.logger.Error("Failed to persist fresh session", "error", err)
	}
	s.session = fresh
	return fresh.Clone()
}

// Save validates and persists a session. On validation or write failure
// nothing is stored and false is returned. On success the previous
// in-memory session is copied to the backup slot before the new value
// replaces primary, then listeners are notified in subscription order.
func (s *Store) Save(sess *domain.UserSession) bool {
	if v := domain.ValidateSession(sess); !v.Valid {
		s.logger.Warn("Rejecting invalid session", "reason", v.Reason)
		return false
	}

	s.mu.Lock()
	ok := s.persistLocked(sess.Clone())
	notify := s.snapshotListenersLocked()
	s.mu.Unlock()

	if ok {
		s.notify(notify, sess)
	}
	return ok
}

// AddRoom upserts a joined-room ref keyed by (name, secret key). An
// existing match only gets its last-visited time refreshed. Returns
// false without mutating when the ref is structurally incomplete.
func (s *Store) AddRoom(ref domain.JoinedRoomRef) bool {
	if ref.Name == "" || ref.SecretKey == "" || ref.JoinedAt.IsZero() {
		s.logger.Warn("Ignoring incomplete room ref", "name", ref.Name)
		return false
	}

	s.mu.Lock()
	next := s.currentLocked().Clone()

	found := false
	for i := range next.JoinedRooms {
		if next.JoinedRooms[i].Matches(ref.Name, ref.SecretKey) {
			visited := s.now()
			next.JoinedRooms[i].LastVisited = &visited
			found = true
			break
		}
	}
	if !found {
		next.JoinedRooms = append(next.JoinedRooms, ref)
	}

	ok := s.persistLocked(next)
	notify := s.snapshotListenersLocked()
	s.mu.Unlock()

	if ok {
		s.notify(notify, next)
	}
	return ok
}

// RemoveRoom drops every ref with the given name and clears the current
// room if it pointed there. Removing an unknown name is a no-op success.
func (s *Store) RemoveRoom(name string) bool {
	s.mu.Lock()
	next := s.currentLocked().Clone()

	kept := next.JoinedRooms[:0]
	for _, ref := range next.JoinedRooms {
		if ref.Name != name {
			kept = append(kept, ref)
		}
	}
	next.JoinedRooms = kept
	if next.CurrentRoomName == name {
		next.CurrentRoomName = ""
	}

	ok := s.persistLocked(next)
	notify := s.snapshotListenersLocked()
	s.mu.Unlock()

	if ok {
		s.notify(notify, next)
	}
	return ok
}

// SetCurrentRoom selects the active room, or clears the selection when
// name is empty. Selecting a room that is not joined returns false with
// no mutation; a successful selection refreshes the ref's last-visited.
func (s *Store) SetCurrentRoom(name string) bool {
	s.mu.Lock()
	next := s.currentLocked().Clone()

	if name != "" {
		if !next.HasRoom(name) {
			s.mu.Unlock()
			s.logger.Warn("Cannot select room that is not joined", "name", name)
			return false
		}
		for i := range next.JoinedRooms {
			if next.JoinedRooms[i].Name == name {
				visited := s.now()
				next.JoinedRooms[i].LastVisited = &visited
			}
		}
	}
	next.CurrentRoomName = name

	ok := s.persistLocked(next)
	notify := s.snapshotListenersLocked()
	s.mu.Unlock()

	if ok {
		s.notify(notify, next)
	}
	return ok
}

// Current returns a copy of the in-memory session, loading it first if
// needed.
func (s *Store) Current() *domain.UserSession {
	s.mu.Lock()
	sess := s.currentLocked().Clone()
	s.mu.Unlock()
	return sess
}

// Subscribe registers a listener called after every successful save.
// The returned function removes the listener; calling it more than once
// is harmless.
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, registration{id: id, listener: listener})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, reg := range s.listeners {
				if reg.id == id {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) currentLocked() *domain.UserSession {
	if s.session == nil {
		s.session = domain.NewUserSession()
	}
	return s.session
}

// persistLocked rotates the current session into the backup slot, then
// writes the new one as primary. Must hold s.mu.
func (s *Store) persistLocked(next *domain.UserSession) bool {
	if s.session != nil {
		if err := s.writeBackup(s.session); err != nil {
			s.logger.Error("Failed to write backup session", "error", err)
		}
	}
	if err := s.writeSlot(SlotPrimary, next); err != nil {
		s.logger.Error("Failed to write session", "error", err)
		return false
	}
	s.session = next
	return true
}

func (s *Store) snapshotListenersLocked() []registration {
	out := make([]registration, len(s.listeners))
	copy(out, s.listeners)
	return out
}

// notify invokes listeners in subscription order. A panicking listener
// is logged and skipped; the rest still run.
func (s *Store) notify(regs []registration, sess *domain.UserSession) {
	for _, reg := range regs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Session listener panicked", "panic", r)
				}
			}()
			reg.listener(*sess.Clone())
		}()
	}
}

func (s *Store) readPrimary() *domain.UserSession {
	data, err := s.storage.Read(SlotPrimary)
	if err != nil {
		if err != ErrSlotEmpty {
			s.logger.Warn("Failed to read session", "error", err)
		}
		return nil
	}
	var sess domain.UserSession
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn("Session is malformed", "error", err)
		return nil
	}
	if v := domain.ValidateSession(&sess); !v.Valid {
		s.logger.Warn("Session failed validation", "reason", v.Reason)
		return nil
	}
	return &sess
}

func (s *Store) readBackup() *domain.UserSession {
	data, err := s.storage.Read(SlotBackup)
	if err != nil {
		if err != ErrSlotEmpty {
			s.logger.Warn("Failed to read backup session", "error", err)
		}
		return nil
	}
	var env backupEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("Backup session is malformed", "error", err)
		return nil
	}
	if v := domain.ValidateSession(env.Session); !v.Valid {
		s.logger.Warn("Backup session failed validation", "reason", v.Reason)
		return nil
	}
	return env.Session
}

func (s *Store) writeSlot(slot string, sess *domain.UserSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.storage.Write(slot, data)
}

func (s *Store) writeBackup(sess *domain.UserSession) error {
	data, err := json.Marshal(backupEnvelope{
		Session:   sess,
		Timestamp: s.now(),
		Version:   backupVersion,
	})
	if err != nil {
		return err
	}
	return s.storage.Write(SlotBackup, data)
}
