package models

import (
	"time"

	"clanelo/internal/rating"
)

// Player represents a clan member tracked by the rating engine
type Player struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`

	// Rating is the global rating, nil until the first match
	Rating *int `gorm:"index" json:"rating"`

	// InitialRating is a manual baseline override
	InitialRating *int `json:"initial_rating,omitempty"`

	rating.Counters `gorm:"embedded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Player) TableName() string {
	return "players"
}

// Baseline is the rating a player starts from outside division tournaments
func (p Player) Baseline() int {
	if p.InitialRating != nil {
		return rating.Clamp(*p.InitialRating)
	}
	return rating.DefaultRating
}

// PlayerTournamentStats is the per (player, tournament) aggregate with its
// own tournament-scoped rating, independent of the global rating
type PlayerTournamentStats struct {
	ID           uint `gorm:"primarykey" json:"id"`
	PlayerID     uint `gorm:"not null;uniqueIndex:idx_stats_player_tournament" json:"player_id"`
	TournamentID uint `gorm:"not null;uniqueIndex:idx_stats_player_tournament;index" json:"tournament_id"`
	Rating       int  `gorm:"not null" json:"rating"`

	rating.Counters `gorm:"embedded"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (PlayerTournamentStats) TableName() string {
	return "player_tournament_stats"
}
