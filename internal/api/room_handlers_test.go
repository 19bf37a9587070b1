package api

import (
	"encoding/json/v2"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoom_Success(t *testing.T) {
	ts := setupTestServer(t)

	token, userID := ts.registerUser(t, "alice@example.com", "Alice")
	room := ts.createRoom(t, token, "Friday Club")

	assert.NotEmpty(t, room.ID)
	assert.Equal(t, "Friday Club", room.Name)
	assert.Equal(t, "letmein", room.SecretKey)
	assert.Equal(t, userID, room.OwnerID)
	assert.Equal(t, "Drinks", room.TypeName)
	require.Len(t, room.Options, 2)
	assert.Equal(t, "Beer", room.Options[0].Name)
	assert.Equal(t, 5, room.Options[0].Points)
}

func TestCreateRoom_OwnerBecomesMember(t *testing.T) {
	ts := setupTestServer(t)

	token, userID := ts.registerUser(t, "alice@example.com", "Alice")
	room := ts.createRoom(t, token, "Friday Club")

	resp := ts.api.Get("/api/v1/rooms/"+room.ID+"/members", "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Members []MemberResponse `json:"members"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))

	require.Len(t, body.Members, 1)
	assert.Equal(t, userID, body.Members[0].UserID)
	assert.Equal(t, "owner", body.Members[0].Role)
}

func TestCreateRoom_DuplicateName(t *testing.T) {
	ts := setupTestServer(t)

	token, _ := ts.registerUser(t, "alice@example.com", "Alice")
	ts.createRoom(t, token, "Friday Club")

	resp := ts.api.Post("/api/v1/rooms",
		"Authorization: Bearer "+token,
		map[string]any{
			"name":       "Friday Club",
			"secret_key": "other",
			"type_name":  "Drinks",
			"options":    []map[string]any{{"name": "Beer", "points": 5}},
		},
	)

	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestJoinRoom_Success(t *testing.T) {
	ts := setupTestServer(t)

	ownerToken, _ := ts.registerUser(t, "alice@example.com", "Alice")
	ts.createRoom(t, ownerToken, "Friday Club")

	guestToken, guestID := ts.registerUser(t, "bob@example.com", "Bob")

	resp := ts.api.Post("/api/v1/rooms/join",
		"Authorization: Bearer "+guestToken,
		map[string]any{
			"name":       "Friday Club",
			"secret_key": "letmein",
		},
	)

	assert.Equal(t, http.StatusOK, resp.Code)

	var room RoomResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &room))
	assert.Equal(t, "Friday Club", room.Name)
	assert.NotEmpty(t, room.Options)

	// Guest shows up in the member list.
	membersResp := ts.api.Get("/api/v1/rooms/"+room.ID+"/members", "Authorization: Bearer "+guestToken)
	require.Equal(t, http.StatusOK, membersResp.Code)

	var body struct {
		Members []MemberResponse `json:"members"`
	}
	require.NoError(t, json.Unmarshal(membersResp.Body.Bytes(), &body))
	require.Len(t, body.Members, 2)

	found := false
	for _, m := range body.Members {
		if m.UserID == guestID {
			found = true
			assert.Equal(t, "member", m.Role)
		}
	}
	assert.True(t, found, "guest should be in the member list")
}

func TestJoinRoom_WrongSecret(t *testing.T) {
	ts := setupTestServer(t)

	ownerToken, _ := ts.registerUser(t, "alice@example.com", "Alice")
	ts.createRoom(t, ownerToken, "Friday Club")

	guestToken, _ := ts.registerUser(t, "bob@example.com", "Bob")

	resp := ts.api.Post("/api/v1/rooms/join",
		"Authorization: Bearer "+guestToken,
		map[string]any{
			"name":       "Friday Club",
			"secret_key": "wrong",
		},
	)

	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestJoinRoom_UnknownRoom(t *testing.T) {
	ts := setupTestServer(t)

	token, _ := ts.registerUser(t, "alice@example.com", "Alice")

	resp := ts.api.Post("/api/v1/rooms/join",
		"Authorization: Bearer "+token,
		map[string]any{
			"name":       "No Such Room",
			"secret_key": "letmein",
		},
	)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestJoinRoom_AlreadyMemberIsIdempotent(t *testing.T) {
	ts := setupTestServer(t)

	ownerToken, _ := ts.registerUser(t, "alice@example.com", "Alice")
	ts.createRoom(t, ownerToken, "Friday Club")

	guestToken, _ := ts.registerUser(t, "bob@example.com", "Bob")

	join := map[string]any{"name": "Friday Club", "secret_key": "letmein"}
	resp := ts.api.Post("/api/v1/rooms/join", "Authorization: Bearer "+guestToken, join)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/rooms/join", "Authorization: Bearer "+guestToken, join)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestGetRoom_MemberOnly(t *testing.T) {
	ts := setupTestServer(t)

	ownerToken, _ := ts.registerUser(t, "alice@example.com", "Alice")
	ts.createRoom(t, ownerToken, "Friday Club")

	resp := ts.api.Get("/api/v1/rooms/by-name/Friday%20Club", "Authorization: Bearer "+ownerToken)
	assert.Equal(t, http.StatusOK, resp.Code)

	// A non-member cannot read the room.
	outsiderToken, _ := ts.registerUser(t, "carol@example.com", "Carol")
	resp = ts.api.Get("/api/v1/rooms/by-name/Friday%20Club", "Authorization: Bearer "+outsiderToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestListMyRooms(t *testing.T) {
	ts := setupTestServer(t)

	token, _ := ts.registerUser(t, "alice@example.com", "Alice")
	ts.createRoom(t, token, "Friday Club")
	ts.createRoom(t, token, "Book Club")

	resp := ts.api.Get("/api/v1/rooms", "Authorization: Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Rooms []RoomSummary `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Len(t, body.Rooms, 2)
}

func TestLeaveRoom(t *testing.T) {
	ts := setupTestServer(t)

	ownerToken, _ := ts.registerUser(t, "alice@example.com", "Alice")
	room := ts.createRoom(t, ownerToken, "Friday Club")

	guestToken, _ := ts.registerUser(t, "bob@example.com", "Bob")
	resp := ts.api.Post("/api/v1/rooms/join",
		"Authorization: Bearer "+guestToken,
		map[string]any{"name": "Friday Club", "secret_key": "letmein"},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/rooms/"+room.ID+"/leave", "Authorization: Bearer "+guestToken)
	assert.Equal(t, http.StatusOK, resp.Code)

	// Membership is gone.
	resp = ts.api.Get("/api/v1/rooms", "Authorization: Bearer "+guestToken)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Rooms []RoomSummary `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Empty(t, body.Rooms)
}

func TestLeaveRoom_OwnerCannotLeave(t *testing.T) {
	ts := setupTestServer(t)

	ownerToken, _ := ts.registerUser(t, "alice@example.com", "Alice")
	room := ts.createRoom(t, ownerToken, "Friday Club")

	resp := ts.api.Post("/api/v1/rooms/"+room.ID+"/leave", "Authorization: Bearer "+ownerToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestKickMember(t *testing.T) {
	ts := setupTestServer(t)

	ownerToken, _ := ts.registerUser(t, "alice@example.com", "Alice")
	room := ts.createRoom(t, ownerToken, "Friday Club")

	guestToken, guestID := ts.registerUser(t, "bob@example.com", "Bob")
	resp := ts.api.Post("/api/v1/rooms/join",
		"Authorization: Bearer "+guestToken,
		map[string]any{"name": "Friday Club", "secret_key": "letmein"},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/rooms/"+room.ID+"/members/"+guestID, "Authorization: Bearer "+ownerToken)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/rooms", "Authorization: Bearer "+guestToken)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Rooms []RoomSummary `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Empty(t, body.Rooms)
}

func TestKickMember_Forbidden(t *testing.T) {
	ts := setupTestServer(t)

	ownerToken, ownerID := ts.registerUser(t, "alice@example.com", "Alice")
	room := ts.createRoom(t, ownerToken, "Friday Club")

	guestToken, _ := ts.registerUser(t, "bob@example.com", "Bob")
	resp := ts.api.Post("/api/v1/rooms/join",
		"Authorization: Bearer "+guestToken,
		map[string]any{"name": "Friday Club", "secret_key": "letmein"},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	// A plain member cannot kick.
	resp = ts.api.Delete("/api/v1/rooms/"+room.ID+"/members/"+ownerID, "Authorization: Bearer "+guestToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	// The owner cannot be kicked, even by themselves.
	resp = ts.api.Delete("/api/v1/rooms/"+room.ID+"/members/"+ownerID, "Authorization: Bearer "+ownerToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}
