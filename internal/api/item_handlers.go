package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tallyapp/tally-server/internal/domain"
	"github.com/tallyapp/tally-server/internal/service"
)

func (s *Server) registerItemRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "addItem",
		Method:      http.MethodPost,
		Path:        "/api/v1/rooms/{id}/items",
		Summary:     "Add items",
		Description: "Records a count of an option for the calling user",
		Tags:        []string{"Items"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAddItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeItem",
		Method:      http.MethodPost,
		Path:        "/api/v1/rooms/{id}/items/remove",
		Summary:     "Remove items",
		Description: "Records a removal event; history is append-only and nets out at read time",
		Tags:        []string{"Items"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRemoveItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "listItems",
		Method:      http.MethodGet,
		Path:        "/api/v1/rooms/{id}/items/{userId}",
		Summary:     "List item history",
		Description: "Returns the raw event history for one member, oldest first",
		Tags:        []string{"Items"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListItems)

	huma.Register(s.api, huma.Operation{
		OperationID: "getScoreboard",
		Method:      http.MethodGet,
		Path:        "/api/v1/rooms/{id}/scoreboard",
		Summary:     "Get scoreboard",
		Description: "Returns every member's net per-option counts, highest total first",
		Tags:        []string{"Items"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleScoreboard)

	huma.Register(s.api, huma.Operation{
		OperationID: "overrideScore",
		Method:      http.MethodPut,
		Path:        "/api/v1/rooms/{id}/items/{userId}/override",
		Summary:     "Override a member's count",
		Description: "Forces a member's net count for one option to a target value. Owner only.",
		Tags:        []string{"Items"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleOverrideScore)
}

// === DTOs ===

// AddItemInput wraps an item event request for Huma.
type AddItemInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Room ID"`
	Body          struct {
		OptionID string `json:"option_id" doc:"Catalog option ID"`
		Count    int    `json:"count" doc:"Quantity, at least 1"`
		Comment  string `json:"comment,omitempty" doc:"Optional note, max 200 chars"`
	}
}

// ListItemsInput identifies whose history in which room to list.
type ListItemsInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Room ID"`
	UserID        string `path:"userId" doc:"Member whose history to list"`
}

// OverrideScoreInput wraps the owner score correction for Huma.
type OverrideScoreInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Room ID"`
	UserID        string `path:"userId" doc:"Member whose count to override"`
	Body          struct {
		OptionID    string `json:"option_id" doc:"Catalog option ID"`
		TargetCount int    `json:"target_count" doc:"Net count the member should end up with"`
	}
}

// ItemResponse is one recorded item event.
type ItemResponse struct {
	ID        string    `json:"id" doc:"Event ID"`
	RoomID    string    `json:"room_id" doc:"Room ID"`
	UserID    string    `json:"user_id" doc:"User ID"`
	OptionID  string    `json:"option_id" doc:"Catalog option ID"`
	Count     int       `json:"count" doc:"Quantity"`
	IsRemoved bool      `json:"is_removed,omitempty" doc:"True for removal events"`
	Comment   string    `json:"comment,omitempty" doc:"Optional note"`
	CreatedAt time.Time `json:"created_at" doc:"Event timestamp"`
}

// ItemOutput wraps one item event for Huma.
type ItemOutput struct {
	Body ItemResponse
}

// ItemListOutput wraps an event history for Huma.
type ItemListOutput struct {
	Body struct {
		Items []ItemResponse `json:"items" doc:"Item events, oldest first"`
	}
}

// ScoreboardOutput wraps the room scoreboard for Huma.
type ScoreboardOutput struct {
	Body service.ScoreboardResponse
}

// === Handlers ===

func (s *Server) handleAddItem(ctx context.Context, input *AddItemInput) (*ItemOutput, error) {
	return s.appendItem(ctx, input, false)
}

func (s *Server) handleRemoveItem(ctx context.Context, input *AddItemInput) (*ItemOutput, error) {
	return s.appendItem(ctx, input, true)
}

func (s *Server) appendItem(ctx context.Context, input *AddItemInput, removed bool) (*ItemOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	req := service.AddItemRequest{
		OptionID: input.Body.OptionID,
		Count:    input.Body.Count,
		Comment:  input.Body.Comment,
	}

	var item *domain.Item
	if removed {
		item, err = s.services.Items.RemoveItem(ctx, userID, input.ID, req)
	} else {
		item, err = s.services.Items.AddItem(ctx, userID, input.ID, req)
	}
	if err != nil {
		return nil, err
	}
	return &ItemOutput{Body: mapItemResponse(item)}, nil
}

func (s *Server) handleListItems(ctx context.Context, input *ListItemsInput) (*ItemListOutput, error) {
	callerID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.services.Items.ListItems(ctx, callerID, input.ID, input.UserID)
	if err != nil {
		return nil, err
	}

	out := &ItemListOutput{}
	out.Body.Items = make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out.Body.Items = append(out.Body.Items, mapItemResponse(item))
	}
	return out, nil
}

func (s *Server) handleScoreboard(ctx context.Context, input *RoomInput) (*ScoreboardOutput, error) {
	callerID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	board, err := s.services.Items.Scoreboard(ctx, callerID, input.ID)
	if err != nil {
		return nil, err
	}
	return &ScoreboardOutput{Body: *board}, nil
}

func (s *Server) handleOverrideScore(ctx context.Context, input *OverrideScoreInput) (*ItemOutput, error) {
	callerID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	correction, err := s.services.Items.OverrideScore(ctx, callerID, input.ID, input.UserID, input.Body.OptionID, input.Body.TargetCount)
	if err != nil {
		return nil, err
	}
	if correction == nil {
		// Net count already matched the target; nothing was recorded.
		return &ItemOutput{Body: ItemResponse{
			RoomID:   input.ID,
			UserID:   input.UserID,
			OptionID: input.Body.OptionID,
		}}, nil
	}
	return &ItemOutput{Body: mapItemResponse(correction)}, nil
}

func mapItemResponse(item *domain.Item) ItemResponse {
	return ItemResponse{
		ID:        item.ID,
		RoomID:    item.RoomID,
		UserID:    item.UserID,
		OptionID:  item.OptionID,
		Count:     item.Count,
		IsRemoved: item.IsRemoved,
		Comment:   item.Comment,
		CreatedAt: item.CreatedAt,
	}
}
