package models

import "time"

// TournamentType selects how first-match baselines are resolved
type TournamentType string

const (
	TournamentNormal   TournamentType = "normal"
	TournamentDivision TournamentType = "division"
)

// TournamentStatus is informational; the engine records into any status
type TournamentStatus string

const (
	StatusUpcoming TournamentStatus = "upcoming"
	StatusActive   TournamentStatus = "active"
	StatusFinished TournamentStatus = "finished"
)

type Tournament struct {
	ID        uint             `gorm:"primarykey" json:"id"`
	Name      string           `gorm:"uniqueIndex;not null" json:"name"`
	Type      TournamentType   `gorm:"not null;default:normal" json:"type"`
	Status    TournamentStatus `gorm:"not null;default:active" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (Tournament) TableName() string {
	return "tournaments"
}

// IsDivision reports whether division baselines apply
func (t Tournament) IsDivision() bool {
	return t.Type == TournamentDivision
}

// Division is a rating bracket inside a tournament with its own starting rating
type Division struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	TournamentID   uint      `gorm:"not null;index" json:"tournament_id"`
	Name           string    `gorm:"not null" json:"name"`
	StartingRating int       `gorm:"not null" json:"starting_rating"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Division) TableName() string {
	return "divisions"
}

// DivisionMember assigns a player to one division of a tournament
type DivisionMember struct {
	ID           uint `gorm:"primarykey" json:"id"`
	TournamentID uint `gorm:"not null;uniqueIndex:idx_division_member" json:"tournament_id"`
	PlayerID     uint `gorm:"not null;uniqueIndex:idx_division_member" json:"player_id"`
	DivisionID   uint `gorm:"not null;index" json:"division_id"`
}

func (DivisionMember) TableName() string {
	return "division_members"
}
