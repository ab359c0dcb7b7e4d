package models

import (
	"time"
)

// User is a player profile in the directory. ID is the opaque identifier
// issued by the identity gateway.
type User struct {
	ID        string    `gorm:"primaryKey;size:128" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email     string    `gorm:"size:255" json:"email"`
	Rating    int       `gorm:"not null;index" json:"rating"`
	Wins      int       `gorm:"not null;default:0" json:"wins"`
	Losses    int       `gorm:"not null;default:0" json:"losses"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// RatingHistoryEntry is one point of a player's rating trajectory.
type RatingHistoryEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"size:128;not null;index:idx_history_user_time,priority:1" json:"user_id"`
	MatchID   string    `gorm:"size:64;not null;index" json:"match_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Delta     int       `gorm:"not null" json:"delta"`
	CreatedAt time.Time `gorm:"not null;index:idx_history_user_time,priority:2" json:"timestamp"`
}

// TableName specifies the table name for GORM
func (RatingHistoryEntry) TableName() string {
	return "rating_history"
}

// RatingSettlement records that a match completion has been applied. The match
// id is the idempotency key of the completion event.
type RatingSettlement struct {
	MatchID   string    `gorm:"primaryKey;size:64" json:"match_id"`
	WinnerID  *string   `gorm:"size:128" json:"winner_id,omitempty"`
	LoserID   *string   `gorm:"size:128" json:"loser_id,omitempty"`
	Delta     int       `gorm:"not null" json:"delta"`
	SettledAt time.Time `gorm:"not null" json:"settled_at"`
}

// TableName specifies the table name for GORM
func (RatingSettlement) TableName() string {
	return "rating_settlements"
}

// CreateProfileRequest is the payload for POST /profiles
type CreateProfileRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email,max=255"`
}

// UpdateProfileRequest is the payload for PATCH /profiles/me
type UpdateProfileRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// ProfileStats summarizes a player's record for the dashboard.
type ProfileStats struct {
	Profile User    `json:"profile"`
	Tier    string  `json:"tier"`
	Games   int     `json:"games"`
	WinRate float64 `json:"win_rate"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ParticipantChange is the effect of one settlement on one player.
type ParticipantChange struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Delta    int    `json:"delta"`
}

// RatingChange is the outcome of settling a match. Replayed is set when the
// match had already been settled and nothing was applied.
type RatingChange struct {
	MatchID   string             `json:"match_id"`
	Winner    *ParticipantChange `json:"winner,omitempty"`
	Loser     *ParticipantChange `json:"loser,omitempty"`
	SettledAt time.Time          `json:"settled_at"`
	Replayed  bool               `json:"replayed"`
}
