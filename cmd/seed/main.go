// Package main provides a tool to seed the database with test tally data.
//
// This creates test users, a room with a drink catalog, and a spread of
// item events over the past two weeks to exercise the scoreboard.
//
// Usage:
//
//	DB_PATH=~/Tally/data/db go run ./cmd/seed
//	DB_PATH=~/Tally/data/db go run ./cmd/seed --days 30
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/tallyapp/tally-server/internal/auth"
	"github.com/tallyapp/tally-server/internal/domain"
	"github.com/tallyapp/tally-server/internal/id"
	"github.com/tallyapp/tally-server/internal/store"
)

var days = flag.Int("days", 14, "Number of past days to spread events over")

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Tally/data/db")
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	s, err := store.Open(dbPath, nil, store.NoopEmitter{})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	users := createTestUsers(ctx, s)
	room, itemType := createTestRoom(ctx, s, users[0])

	for i, user := range users {
		role := domain.RoleMember
		if i == 0 {
			role = domain.RoleOwner
		}
		addMember(ctx, s, room.ID, user.ID, role)
	}

	// Spread item events over the past days, weighted toward evenings.
	now := time.Now()
	eventsCreated := 0
	for day := *days - 1; day >= 0; day-- {
		for _, user := range users {
			// 70% chance a user logged anything on a given day.
			if rng.Float32() > 0.7 {
				continue
			}

			numEvents := 1 + rng.Intn(4)
			for e := 0; e < numEvents; e++ {
				opt := itemType.Options[rng.Intn(len(itemType.Options))]
				item := &domain.Item{
					RoomID:   room.ID,
					UserID:   user.ID,
					OptionID: opt.ID,
					Count:    1 + rng.Intn(3),
				}
				// Occasionally log a correction.
				if rng.Float32() < 0.1 {
					item.IsRemoved = true
					item.Count = 1
				}
				item.ID = id.MustGenerate("item")
				item.InitTimestamps()
				at := now.AddDate(0, 0, -day).Add(time.Duration(17+rng.Intn(6)) * time.Hour)
				item.CreatedAt = at
				item.UpdatedAt = at

				if err := s.Items.Create(ctx, item.ID, item); err != nil {
					log.Printf("Failed to create item event: %v", err)
					continue
				}
				eventsCreated++
			}
		}
	}

	fmt.Printf("\nSeeded %d users, room %q, %d item events over %d days\n",
		len(users), room.Name, eventsCreated, *days)
}

func createTestUsers(ctx context.Context, s *store.Store) []*domain.User {
	specs := []struct {
		email string
		name  string
	}{
		{"alice@example.com", "Alice"},
		{"bob@example.com", "Bob"},
		{"carol@example.com", "Carol"},
		{"dave@example.com", "Dave"},
	}

	users := make([]*domain.User, 0, len(specs))
	for _, spec := range specs {
		if existing, err := s.Users.GetByIndex(ctx, "email", spec.email); err == nil {
			fmt.Printf("User %s already exists, reusing\n", spec.email)
			users = append(users, existing)
			continue
		}

		hash, err := auth.HashPassword("password123")
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}

		user := &domain.User{
			Email:        spec.email,
			PasswordHash: hash,
			DisplayName:  spec.name,
		}
		user.ID = id.MustGenerate("user")
		user.InitTimestamps()

		if err := s.Users.Create(ctx, user.ID, user); err != nil {
			log.Fatalf("Failed to create user %s: %v", spec.email, err)
		}

		profile := &domain.Profile{
			UserID:     user.ID,
			AvatarType: domain.AvatarAuto,
		}
		profile.ID = user.ID
		profile.InitTimestamps()
		if err := s.Profiles.Create(ctx, user.ID, profile); err != nil {
			log.Fatalf("Failed to create profile for %s: %v", spec.email, err)
		}

		fmt.Printf("Created user %s (%s)\n", spec.name, user.ID)
		users = append(users, user)
	}
	return users
}

func createTestRoom(ctx context.Context, s *store.Store, owner *domain.User) (*domain.Room, *domain.ItemType) {
	if existing, err := s.Rooms.GetByIndex(ctx, "name", "Friday Club"); err == nil {
		fmt.Println("Room already exists, reusing")
		itemType, err := s.ItemTypes.Get(ctx, existing.ItemTypeID)
		if err != nil {
			log.Fatalf("Failed to load item type: %v", err)
		}
		return existing, itemType
	}

	itemType := &domain.ItemType{
		Name: "Drinks",
		Options: []domain.ItemOption{
			{ID: id.MustGenerate("opt"), Name: "Beer", Emoji: "🍺", Points: 5},
			{ID: id.MustGenerate("opt"), Name: "Wine", Emoji: "🍷", Points: 8},
			{ID: id.MustGenerate("opt"), Name: "Shot", Emoji: "🥃", Points: 10},
			{ID: id.MustGenerate("opt"), Name: "Water", Emoji: "💧", Points: 1},
		},
	}
	itemType.ID = id.MustGenerate("itemtype")
	itemType.InitTimestamps()
	if err := s.ItemTypes.Create(ctx, itemType.ID, itemType); err != nil {
		log.Fatalf("Failed to create item type: %v", err)
	}

	room := &domain.Room{
		Name:       "Friday Club",
		SecretKey:  "cheers",
		OwnerID:    owner.ID,
		ItemTypeID: itemType.ID,
	}
	room.ID = id.MustGenerate("room")
	room.InitTimestamps()
	if err := s.Rooms.Create(ctx, room.ID, room); err != nil {
		log.Fatalf("Failed to create room: %v", err)
	}

	fmt.Printf("Created room %q (%s)\n", room.Name, room.ID)
	return room, itemType
}

func addMember(ctx context.Context, s *store.Store, roomID, userID string, role domain.MemberRole) {
	member := &domain.Member{
		RoomID: roomID,
		UserID: userID,
		Role:   role,
	}
	member.ID = id.MustGenerate("member")
	member.InitTimestamps()
	if err := s.Members.Create(ctx, member.ID, member); err != nil {
		// Already a member from a previous run.
		return
	}
	fmt.Printf("Added member %s to room as %s\n", userID, role)
}
