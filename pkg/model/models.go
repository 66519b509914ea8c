package model

import (
	freet_trace "freet/pkg/trace"

	"github.com/ServiceWeaver/weaver"
)

// Message is the payload published to the cascade-delete queue when a freet
// is removed. Consumers sever every aggregate still referencing the freet.
type Message struct {
	ReqID     int64 `json:"reqid"`
	FreetID   int64 `json:"freetid"`
	Timestamp int64 `json:"timestamp"`
	// tracing
	SpanContext freet_trace.SpanContext `json:"span_context"`
	// evaluation metrics
	CascadeSendTs int64 `json:"cascade_send_ts"`
}

type User struct {
	weaver.AutoMarshal
	UserID    int64  `bson:"user_id"`
	FirstName string `bson:"first_name"`
	LastName  string `bson:"last_name"`
	Username  string `bson:"username"`
	PwdHashed string `bson:"pwd_hashed"`
	Salt      string `bson:"salt"`
}

type Creator struct {
	weaver.AutoMarshal
	UserID   int64  `bson:"user_id"`
	Username string `bson:"username"`
}

type Freet struct {
	// make freet serializable
	// by default, struct literal types are not serializable
	weaver.AutoMarshal
	FreetID   int64   `bson:"freet_id"`
	ReqID     int64   `bson:"req_id"`
	Author    Creator `bson:"author"`
	Text      string  `bson:"text"`
	Timestamp int64   `bson:"timestamp"`
	Modified  int64   `bson:"modified"`
}

// Follow is the relationship aggregate anchored to one user. Both directions
// of every edge are materialized: if B is in A's Following then A is in B's
// Followers.
type Follow struct {
	weaver.AutoMarshal
	UserID    int64   `bson:"user_id"`
	Following []int64 `bson:"following"`
	Followers []int64 `bson:"followers"`
}

// Reaction is the aggregate shared by likes and refreets: the set of users
// that liked (or reshared) the anchor freet.
type Reaction struct {
	weaver.AutoMarshal
	FreetID int64   `bson:"freet_id"`
	UserIDs []int64 `bson:"user_ids"`
}

type Circle struct {
	weaver.AutoMarshal
	CircleID  int64   `bson:"circle_id"`
	Name      string  `bson:"name"`
	OwnerID   int64   `bson:"owner_id"`
	MemberIDs []int64 `bson:"member_ids"`
	FreetIDs  []int64 `bson:"freet_ids"`
}
