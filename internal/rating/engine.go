// Package rating holds the fixed-K rating rules.
//
// Every decided match moves the winner up by K and the loser down by K,
// regardless of the rating gap. This is a simplification of Elo; there is no
// expected-score scaling and no rating floor.
package rating

import "math"

const DefaultK = 50

// Engine applies the rating rules.
type Engine struct {
	K int
}

// NewEngine returns an engine with the given K, falling back to DefaultK.
func NewEngine(k int) Engine {
	if k <= 0 {
		k = DefaultK
	}
	return Engine{K: k}
}

// Result is the new record of one participant.
type Result struct {
	Rating int
	Delta  int
	Wins   int
	Losses int
}

// Win returns the record of a winner after one match.
func (e Engine) Win(rating, wins, losses int) Result {
	return Result{Rating: rating + e.K, Delta: e.K, Wins: wins + 1, Losses: losses}
}

// Loss returns the record of a loser after one match.
func (e Engine) Loss(rating, wins, losses int) Result {
	return Result{Rating: rating - e.K, Delta: -e.K, Wins: wins, Losses: losses + 1}
}

// Tier names the skill bracket of a rating.
func Tier(rating int) string {
	switch {
	case rating < 1000:
		return "Beginner"
	case rating < 1400:
		return "Intermediate"
	case rating < 1800:
		return "Advanced"
	case rating < 2200:
		return "Expert"
	default:
		return "Champion"
	}
}

// WinRate is the win percentage rounded to one decimal, 0 with no games.
func WinRate(wins, losses int) float64 {
	total := wins + losses
	if total == 0 {
		return 0
	}
	return math.Round(float64(wins)/float64(total)*1000) / 10
}
