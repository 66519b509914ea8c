package api

import (
	"strconv"
	"time"

	"freet/pkg/model"
)

// Wire representations. Every reference is rendered as its decimal string
// id, member sets as arrays of string ids, and storage metadata is never
// exposed. Constructing a response performs no I/O.

type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type FreetResponse struct {
	ID           string `json:"id"`
	Author       string `json:"author"`
	Username     string `json:"username"`
	Text         string `json:"content"`
	DateCreated  string `json:"dateCreated"`
	DateModified string `json:"dateModified,omitempty"`
}

type FollowResponse struct {
	User      string   `json:"user"`
	Following []string `json:"following"`
	Followers []string `json:"followers"`
}

type ReactionResponse struct {
	Freet string   `json:"freet"`
	Users []string `json:"users"`
}

type CircleResponse struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Owner   string   `json:"owner"`
	Members []string `json:"members"`
	Freets  []string `json:"freets"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatIDs(ids []int64) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, formatID(id))
	}
	return out
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func constructUserResponse(user model.User) UserResponse {
	return UserResponse{
		ID:        formatID(user.UserID),
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

func constructFreetResponse(freet model.Freet) FreetResponse {
	return FreetResponse{
		ID:           formatID(freet.FreetID),
		Author:       formatID(freet.Author.UserID),
		Username:     freet.Author.Username,
		Text:         freet.Text,
		DateCreated:  formatTimestamp(freet.Timestamp),
		DateModified: formatTimestamp(freet.Modified),
	}
}

func constructFollowResponse(follow model.Follow) FollowResponse {
	return FollowResponse{
		User:      formatID(follow.UserID),
		Following: formatIDs(follow.Following),
		Followers: formatIDs(follow.Followers),
	}
}

func constructReactionResponse(reaction model.Reaction) ReactionResponse {
	return ReactionResponse{
		Freet: formatID(reaction.FreetID),
		Users: formatIDs(reaction.UserIDs),
	}
}

func constructCircleResponse(circle model.Circle) CircleResponse {
	return CircleResponse{
		ID:      formatID(circle.CircleID),
		Name:    circle.Name,
		Owner:   formatID(circle.OwnerID),
		Members: formatIDs(circle.MemberIDs),
		Freets:  formatIDs(circle.FreetIDs),
	}
}
