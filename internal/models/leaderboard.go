package models

// LeaderboardEntry represents a single entry in the leaderboard
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

// LeaderboardResponse represents the leaderboard response
type LeaderboardResponse struct {
	Data    []LeaderboardEntry `json:"data"`
	Limit   int                `json:"limit"`
	Total   int64              `json:"total"`
	Version int64              `json:"version"`
}

// RankResponse represents a single user's global rank
type RankResponse struct {
	GlobalRank int    `json:"global_rank"`
	Username   string `json:"username"`
	Rating     int    `json:"rating"`
}
