package models

import (
	"fmt"
	"time"
)

// FriendRequestStatus is the lifecycle state of a friend request.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
	FriendRequestCanceled FriendRequestStatus = "canceled"
)

// Terminal reports whether no further transition is allowed.
func (s FriendRequestStatus) Terminal() bool {
	return s != FriendRequestPending
}

// FriendRequest is a directed request from Sender to Receiver.
//
// PendingKey equals PairKey while the request is pending and is NULL once it
// reaches a terminal status. Its unique index allows at most one pending
// request per unordered pair.
type FriendRequest struct {
	ID          string              `gorm:"primaryKey;size:36" json:"id"`
	SenderID    string              `gorm:"size:128;not null;index" json:"sender_id"`
	ReceiverID  string              `gorm:"size:128;not null;index" json:"receiver_id"`
	Status      FriendRequestStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	PairKey     string              `gorm:"size:272;not null;index" json:"-"`
	PendingKey  *string             `gorm:"size:272;uniqueIndex" json:"-"`
	CreatedAt   time.Time           `json:"created_at"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`
}

// TableName specifies the table name for GORM
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// Friendship is a single record for an undirected edge. UserLow < UserHigh.
type Friendship struct {
	UserLow   string    `gorm:"primaryKey;size:128" json:"user_low"`
	UserHigh  string    `gorm:"primaryKey;size:128;index" json:"user_high"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Friendship) TableName() string {
	return "friendships"
}

// Other returns the counterpart of userID on this edge.
func (f Friendship) Other(userID string) string {
	if f.UserLow == userID {
		return f.UserHigh
	}
	return f.UserLow
}

// CanonicalPair orders two user ids so that a <= b.
func CanonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// PairKey is the canonical key for an unordered pair of users. The length
// prefix keeps it unambiguous when ids contain the separator.
func PairKey(a, b string) string {
	lo, hi := CanonicalPair(a, b)
	return fmt.Sprintf("%d:%s|%s", len(lo), lo, hi)
}

// SendFriendRequest is the payload for POST /friends/requests
type SendFriendRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required,max=128"`
}

// FriendRequestView is a request joined with the counterpart's profile.
type FriendRequestView struct {
	Request FriendRequest `json:"request"`
	User    User          `json:"user"`
}

// FriendsOverview is everything the friends screen needs in one response.
type FriendsOverview struct {
	Friends  []User              `json:"friends"`
	Incoming []FriendRequestView `json:"incoming_requests"`
	Outgoing []FriendRequestView `json:"outgoing_requests"`
}
