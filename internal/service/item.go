package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tallyapp/tally-server/internal/aggregate"
	"github.com/tallyapp/tally-server/internal/domain"
	domainerrors "github.com/tallyapp/tally-server/internal/errors"
	"github.com/tallyapp/tally-server/internal/gateway"
	"github.com/tallyapp/tally-server/internal/id"
	"github.com/tallyapp/tally-server/internal/store"
)

// ItemService records item events and computes scores from them.
type ItemService struct {
	store   *store.Store
	gateway gateway.Gateway
	logger  *slog.Logger
}

// NewItemService creates a new item service.
func NewItemService(st *store.Store, gw gateway.Gateway, logger *slog.Logger) *ItemService {
	return &ItemService{
		store:   st,
		gateway: gw,
		logger:  logger,
	}
}

// AddItemRequest records a count of an option for the calling user.
type AddItemRequest struct {
	OptionID string `json:"option_id" validate:"required"`
	Count    int    `json:"count" validate:"required,gte=1"`
	Comment  string `json:"comment" validate:"max=200"`
}

// UserScore is one member's aggregated tally.
type UserScore struct {
	UserID      string                  `json:"user_id"`
	Name        string                  `json:"name"`
	Items       []domain.AggregatedItem `json:"items"`
	TotalPoints int                     `json:"total_points"`
}

// ScoreboardResponse is the whole room's tally, highest total first.
type ScoreboardResponse struct {
	RoomID string      `json:"room_id"`
	Scores []UserScore `json:"scores"`
}

// AddItem appends an add event for the calling user.
func (s *ItemService) AddItem(ctx context.Context, userID, roomID string, req AddItemRequest) (*domain.Item, error) {
	return s.appendEvent(ctx, userID, roomID, req, false)
}

// RemoveItem appends a remove event. Prior events are never mutated;
// the aggregator nets removals against adds at read time.
func (s *ItemService) RemoveItem(ctx context.Context, userID, roomID string, req AddItemRequest) (*domain.Item, error) {
	return s.appendEvent(ctx, userID, roomID, req, true)
}

func (s *ItemService) appendEvent(ctx context.Context, userID, roomID string, req AddItemRequest, removed bool) (*domain.Item, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	room, err := s.gateway.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	member, err := s.gateway.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, domainerrors.Forbidden("you are not a member of this room")
	}

	itemType, err := s.store.ItemTypes.Get(ctx, room.ItemTypeID)
	if err != nil {
		return nil, fmt.Errorf("get item type: %w", err)
	}
	if itemType.Option(req.OptionID) == nil {
		return nil, domainerrors.Validation("unknown option for this room")
	}

	item := &domain.Item{
		RoomID:    roomID,
		UserID:    userID,
		OptionID:  req.OptionID,
		Count:     req.Count,
		IsRemoved: removed,
		Comment:   req.Comment,
	}
	item.ID = id.MustGenerate("item")
	item.InitTimestamps()

	if err := s.store.Items.Create(ctx, item.ID, item); err != nil {
		return nil, fmt.Errorf("create item event: %w", err)
	}

	return item, nil
}

// ListItems returns the raw event history for one member of the room.
func (s *ItemService) ListItems(ctx context.Context, callerID, roomID, userID string) ([]*domain.Item, error) {
	member, err := s.gateway.IsMember(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, domainerrors.Forbidden("you are not a member of this room")
	}

	items, err := store.Collect(s.store.Items.ListByIndex(ctx, "room", roomID))
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	out := make([]*domain.Item, 0, len(items))
	for _, item := range items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Scoreboard folds every member's events into per-option totals,
// ordered by total points descending.
func (s *ItemService) Scoreboard(ctx context.Context, callerID, roomID string) (*ScoreboardResponse, error) {
	room, err := s.gateway.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	member, err := s.gateway.IsMember(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, domainerrors.Forbidden("you are not a member of this room")
	}

	itemType, err := s.store.ItemTypes.Get(ctx, room.ItemTypeID)
	if err != nil {
		return nil, fmt.Errorf("get item type: %w", err)
	}

	items, err := store.Collect(s.store.Items.ListByIndex(ctx, "room", roomID))
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	byUser := make(map[string][]*domain.Item)
	for _, item := range items {
		byUser[item.UserID] = append(byUser[item.UserID], item)
	}

	scores := make([]UserScore, 0, len(byUser))
	for userID, userItems := range byUser {
		aggregated := aggregate.Aggregate(userItems, itemType)
		if len(aggregated) == 0 {
			continue
		}
		score := UserScore{
			UserID:      userID,
			Items:       aggregated,
			TotalPoints: aggregate.TotalPoints(aggregated),
		}
		if user, err := s.store.Users.Get(ctx, userID); err == nil {
			score.Name = user.Name()
		}
		scores = append(scores, score)
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].TotalPoints != scores[j].TotalPoints {
			return scores[i].TotalPoints > scores[j].TotalPoints
		}
		return scores[i].UserID < scores[j].UserID
	})

	return &ScoreboardResponse{RoomID: roomID, Scores: scores}, nil
}

// OverrideScore lets the room owner force a member's net count for one
// option to a target value. The correction is itself an event, so the
// history stays append-only and auditable.
func (s *ItemService) OverrideScore(ctx context.Context, callerID, roomID, userID, optionID string, targetCount int) (*domain.Item, error) {
	if targetCount < 0 {
		return nil, domainerrors.Validation("target count cannot be negative")
	}

	room, err := s.gateway.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != callerID {
		return nil, domainerrors.Forbidden("only the room owner can override scores")
	}

	itemType, err := s.store.ItemTypes.Get(ctx, room.ItemTypeID)
	if err != nil {
		return nil, fmt.Errorf("get item type: %w", err)
	}
	if itemType.Option(optionID) == nil {
		return nil, domainerrors.Validation("unknown option for this room")
	}

	items, err := store.Collect(s.store.Items.ListByIndex(ctx, "room", roomID))
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	net := 0
	for _, item := range items {
		if item.UserID != userID || item.OptionID != optionID {
			continue
		}
		if item.IsRemoved {
			net -= item.Count
		} else {
			net += item.Count
		}
	}

	delta := targetCount - net
	if delta == 0 {
		return nil, nil
	}

	correction := &domain.Item{
		RoomID:   roomID,
		UserID:   userID,
		OptionID: optionID,
		Comment:  "adjusted by room owner",
	}
	if delta > 0 {
		correction.Count = delta
	} else {
		correction.Count = -delta
		correction.IsRemoved = true
	}
	correction.ID = id.MustGenerate("item")
	correction.InitTimestamps()

	if err := s.store.Items.Create(ctx, correction.ID, correction); err != nil {
		return nil, fmt.Errorf("create correction event: %w", err)
	}

	s.logger.Info("Score overridden",
		"room_id", roomID,
		"user_id", userID,
		"option_id", optionID,
		"target", targetCount,
	)

	return correction, nil
}
