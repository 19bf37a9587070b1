package gateway

import (
	"context"
	"time"

	"github.com/tallyapp/tally-server/internal/cache"
	"github.com/tallyapp/tally-server/internal/domain"
)

// Cached memoizes gateway reads in TTL caches. Only successful answers
// are cached; errors always pass through uncached so a flapping backend
// recovers as soon as it comes back. Membership writes invalidate the
// affected entries immediately.
type Cached struct {
	next Gateway

	rooms      *cache.Cache[*domain.Room]
	membership *cache.Cache[bool]
	profiles   *cache.Cache[*domain.Profile]
}

// NewCached wraps next with read memoization.
func NewCached(next Gateway, ttl, sweepInterval time.Duration) *Cached {
	return &Cached{
		next:       next,
		rooms:      cache.New[*domain.Room](ttl, sweepInterval),
		membership: cache.New[bool](ttl, sweepInterval),
		profiles:   cache.New[*domain.Profile](ttl, sweepInterval),
	}
}

// Stop halts the cache sweepers.
func (c *Cached) Stop() {
	c.rooms.Stop()
	c.membership.Stop()
	c.profiles.Stop()
}

func (c *Cached) GetRoom(ctx context.Context, name string) (*domain.Room, error) {
	key := "name:" + name
	if room, ok := c.rooms.Get(key); ok {
		return room, nil
	}
	room, err := c.next.GetRoom(ctx, name)
	if err != nil {
		return nil, err
	}
	c.rooms.Set(key, room)
	c.rooms.Set("id:"+room.ID, room)
	return room, nil
}

func (c *Cached) GetRoomByID(ctx context.Context, roomID string) (*domain.Room, error) {
	key := "id:" + roomID
	if room, ok := c.rooms.Get(key); ok {
		return room, nil
	}
	room, err := c.next.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	c.rooms.Set(key, room)
	return room, nil
}

func (c *Cached) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	key := memberKey(roomID, userID)
	if member, ok := c.membership.Get(key); ok {
		return member, nil
	}
	member, err := c.next.IsMember(ctx, roomID, userID)
	if err != nil {
		return false, err
	}
	c.membership.Set(key, member)
	return member, nil
}

func (c *Cached) AddMember(ctx context.Context, roomID, userID string, role domain.MemberRole) error {
	if err := c.next.AddMember(ctx, roomID, userID, role); err != nil {
		return err
	}
	c.membership.Delete(memberKey(roomID, userID))
	return nil
}

func (c *Cached) RemoveMember(ctx context.Context, roomID, userID string) error {
	if err := c.next.RemoveMember(ctx, roomID, userID); err != nil {
		return err
	}
	c.membership.Delete(memberKey(roomID, userID))
	return nil
}

func (c *Cached) GetUserProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if profile, ok := c.profiles.Get(userID); ok {
		return profile, nil
	}
	profile, err := c.next.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.profiles.Set(userID, profile)
	return profile, nil
}

func memberKey(roomID, userID string) string {
	return roomID + "/" + userID
}
