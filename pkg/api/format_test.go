package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freet/pkg/model"
)

func TestConstructFollowResponse(t *testing.T) {
	resp := constructFollowResponse(model.Follow{
		UserID:    1,
		Following: []int64{2, 3},
		Followers: nil,
	})
	assert.Equal(t, "1", resp.User)
	assert.Equal(t, []string{"2", "3"}, resp.Following)
	// empty sets render as [], never null
	assert.NotNil(t, resp.Followers)
	assert.Empty(t, resp.Followers)
}

func TestConstructReactionResponse(t *testing.T) {
	resp := constructReactionResponse(model.Reaction{FreetID: 10, UserIDs: []int64{1}})
	assert.Equal(t, "10", resp.Freet)
	assert.Equal(t, []string{"1"}, resp.Users)
}

func TestConstructCircleResponse(t *testing.T) {
	resp := constructCircleResponse(model.Circle{
		CircleID:  5,
		Name:      "close friends",
		OwnerID:   1,
		MemberIDs: []int64{1, 2},
		FreetIDs:  []int64{10},
	})
	assert.Equal(t, "5", resp.ID)
	assert.Equal(t, "close friends", resp.Name)
	assert.Equal(t, "1", resp.Owner)
	assert.Equal(t, []string{"1", "2"}, resp.Members)
	assert.Equal(t, []string{"10"}, resp.Freets)
}

func TestConstructUserResponseStripsCredentials(t *testing.T) {
	resp := constructUserResponse(model.User{
		UserID:    1,
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Doe",
		PwdHashed: "hash",
		Salt:      "salt",
	})
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "alice", wire["username"])
	assert.NotContains(t, wire, "pwd_hashed")
	assert.NotContains(t, wire, "salt")
}

func TestConstructFreetResponse(t *testing.T) {
	resp := constructFreetResponse(model.Freet{
		FreetID:   100,
		Author:    model.Creator{UserID: 1, Username: "alice"},
		Text:      "hello",
		Timestamp: 1700000000000,
	})
	assert.Equal(t, "100", resp.ID)
	assert.Equal(t, "1", resp.Author)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "hello", resp.Text)
	assert.NotEmpty(t, resp.DateCreated)
	assert.Empty(t, resp.DateModified)
}
