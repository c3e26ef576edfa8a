package models

import "clanelo/internal/rating"

// LeaderboardEntry represents a single entry in the leaderboard
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

// LeaderboardResponse represents the paginated leaderboard response
type LeaderboardResponse struct {
	Data   []LeaderboardEntry `json:"data"`
	Offset int                `json:"offset"`
	Limit  int                `json:"limit"`
	Total  int64              `json:"total"`
}

// SearchResponse represents the response for player search
type SearchResponse struct {
	GlobalRank int    `json:"global_rank"`
	Name       string `json:"name"`
	Rating     int    `json:"rating"`
}

// PlayerProfile combines global and per-tournament aggregates
type PlayerProfile struct {
	Player        Player                  `json:"player"`
	Tournaments   []PlayerTournamentStats `json:"tournaments"`
	RecentMatches []Match                 `json:"recent_matches"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// StandingEntry is one row of a tournament table ranked by scoped rating
type StandingEntry struct {
	Rank     int    `json:"rank"`
	PlayerID uint   `json:"player_id"`
	Name     string `json:"name"`
	Rating   int    `json:"rating"`

	rating.Counters
}

// StandingsResponse is a tournament table
type StandingsResponse struct {
	Tournament Tournament      `json:"tournament"`
	Standings  []StandingEntry `json:"standings"`
}
