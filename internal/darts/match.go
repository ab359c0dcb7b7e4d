// Package darts holds the turn-by-turn state machine of a single leg.
// It performs no I/O; the match service persists Match values between calls.
package darts

import (
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
)

const (
	MaxDartValue         = 60
	DartsPerTurn         = 3
	DefaultStartingScore = 501
	MinStartingScore     = 2
	MaxStartingScore     = 1001
)

// Side identifies a participant within a match.
type Side string

const (
	SidePlayer   Side = "player"
	SideOpponent Side = "opponent"
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SidePlayer {
		return SideOpponent
	}
	return SidePlayer
}

// Status is the lifecycle state of a match.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// Outcome is the result of settling one turn.
type Outcome string

const (
	OutcomeScored Outcome = "scored"
	OutcomeBust   Outcome = "bust"
	OutcomeWon    Outcome = "won"
)

// Match is the full state of one leg. OpponentID is empty for a guest.
type Match struct {
	ID            string    `json:"id"`
	PlayerID      string    `json:"player_id"`
	OpponentID    string    `json:"opponent_id,omitempty"`
	StartingScore int       `json:"starting_score"`
	PlayerScore   int       `json:"player_score"`
	OpponentScore int       `json:"opponent_score"`
	TurnDarts     []int     `json:"turn_darts"`
	TurnOwner     Side      `json:"turn_owner"`
	Status        Status    `json:"status"`
	Winner        Side      `json:"winner,omitempty"`
	Settled       bool      `json:"settled"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TurnState is the active turn after a dart was recorded.
type TurnState struct {
	MatchID   string `json:"match_id"`
	TurnOwner Side   `json:"turn_owner"`
	Darts     []int  `json:"darts"`
	TurnTotal int    `json:"turn_total"`
	Score     int    `json:"score"`
	DartsLeft int    `json:"darts_left"`
}

// TurnResult describes how a turn was settled.
type TurnResult struct {
	MatchID     string  `json:"match_id"`
	Outcome     Outcome `json:"outcome"`
	Thrower     Side    `json:"thrower"`
	Darts       []int   `json:"darts"`
	TurnTotal   int     `json:"turn_total"`
	ScoreBefore int     `json:"score_before"`
	ScoreAfter  int     `json:"score_after"`
	TurnOwner   Side    `json:"turn_owner"`
	Winner      Side    `json:"winner,omitempty"`
}

// New starts a leg with the player throwing first.
func New(id, playerID, opponentID string, startingScore int, now time.Time) (*Match, error) {
	if startingScore < MinStartingScore || startingScore > MaxStartingScore {
		return nil, apperr.ErrInvalidStartScore
	}
	if playerID == "" {
		return nil, apperr.Invalid("player id is required")
	}
	if opponentID == playerID {
		return nil, apperr.ErrSelfMatch
	}
	return &Match{
		ID:            id,
		PlayerID:      playerID,
		OpponentID:    opponentID,
		StartingScore: startingScore,
		PlayerScore:   startingScore,
		OpponentScore: startingScore,
		TurnDarts:     []int{},
		TurnOwner:     SidePlayer,
		Status:        StatusInProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsGuestMatch reports whether the opponent has no registered identity.
func (m *Match) IsGuestMatch() bool { return m.OpponentID == "" }

// Score returns the remaining score of a side.
func (m *Match) Score(side Side) int {
	if side == SidePlayer {
		return m.PlayerScore
	}
	return m.OpponentScore
}

func (m *Match) setScore(side Side, v int) {
	if side == SidePlayer {
		m.PlayerScore = v
	} else {
		m.OpponentScore = v
	}
}

// ParticipantID returns the registered user id of a side, or "" for a guest.
func (m *Match) ParticipantID(side Side) string {
	if side == SidePlayer {
		return m.PlayerID
	}
	return m.OpponentID
}

// WinnerID and LoserID return "" for a guest or while the match is undecided.
func (m *Match) WinnerID() string {
	if m.Status != StatusCompleted {
		return ""
	}
	return m.ParticipantID(m.Winner)
}

func (m *Match) LoserID() string {
	if m.Status != StatusCompleted {
		return ""
	}
	return m.ParticipantID(m.Winner.Other())
}

// RecordDart appends a dart to the active turn. Nothing changes on error.
func (m *Match) RecordDart(value int, now time.Time) (TurnState, error) {
	if value < 0 || value > MaxDartValue {
		return TurnState{}, apperr.ErrInvalidDartValue
	}
	if m.Status != StatusInProgress {
		return TurnState{}, apperr.ErrMatchNotInProgress
	}
	if len(m.TurnDarts) >= DartsPerTurn {
		return TurnState{}, apperr.ErrTurnFull
	}

	m.TurnDarts = append(m.TurnDarts, value)
	m.touch(now)
	return m.turnState(), nil
}

// EndTurn settles the active turn.
//
// The dart total is subtracted from the thrower's score. Exactly zero wins the
// leg. Below zero is a bust: the score is left as it was before the turn. In
// every other case the new score is kept. The turn passes to the other side on
// bust and on a normal commit. A double is not required to check out.
func (m *Match) EndTurn(now time.Time) (TurnResult, error) {
	if m.Status != StatusInProgress {
		return TurnResult{}, apperr.ErrMatchNotInProgress
	}

	thrower := m.TurnOwner
	darts := append([]int(nil), m.TurnDarts...)
	total := sum(darts)
	before := m.Score(thrower)
	remaining := before - total

	res := TurnResult{
		MatchID:     m.ID,
		Thrower:     thrower,
		Darts:       darts,
		TurnTotal:   total,
		ScoreBefore: before,
	}

	switch {
	case remaining == 0:
		m.setScore(thrower, 0)
		m.Status = StatusCompleted
		m.Winner = thrower
		res.Outcome = OutcomeWon
		res.Winner = thrower
	case remaining < 0:
		m.TurnOwner = thrower.Other()
		res.Outcome = OutcomeBust
	default:
		m.setScore(thrower, remaining)
		m.TurnOwner = thrower.Other()
		res.Outcome = OutcomeScored
	}

	m.TurnDarts = []int{}
	m.touch(now)
	res.ScoreAfter = m.Score(thrower)
	res.TurnOwner = m.TurnOwner
	return res, nil
}

// Abandon ends an in-progress match without a winner.
func (m *Match) Abandon(now time.Time) error {
	if m.Status != StatusInProgress {
		return apperr.ErrMatchNotInProgress
	}
	m.Status = StatusAbandoned
	m.TurnDarts = []int{}
	m.touch(now)
	return nil
}

// MarkSettled records that the rating engine has applied the result.
func (m *Match) MarkSettled(now time.Time) {
	m.Settled = true
	m.touch(now)
}

func (m *Match) turnState() TurnState {
	total := sum(m.TurnDarts)
	return TurnState{
		MatchID:   m.ID,
		TurnOwner: m.TurnOwner,
		Darts:     append([]int(nil), m.TurnDarts...),
		TurnTotal: total,
		Score:     m.Score(m.TurnOwner),
		DartsLeft: DartsPerTurn - len(m.TurnDarts),
	}
}

func (m *Match) touch(now time.Time) {
	m.Version++
	m.UpdatedAt = now
}

func sum(vs []int) int {
	total := 0
	for _, v := range vs {
		total += v
	}
	return total
}
