package models

import "time"

// RecordMatchRequest represents the payload for recording a match.
// Exactly one of Player2ID and GuestName identifies the opponent.
type RecordMatchRequest struct {
	TournamentID  uint       `json:"tournament_id" validate:"required"`
	Player1ID     uint       `json:"player1_id" validate:"required"`
	Player2ID     *uint      `json:"player2_id" validate:"omitempty,min=1"`
	GuestName     string     `json:"guest_name" validate:"omitempty,min=1,max=50"`
	Goals1        int        `json:"goals1" validate:"min=0,max=99"`
	Goals2        int        `json:"goals2" validate:"min=0,max=99"`
	Player1Absent bool       `json:"player1_absent"`
	Player2Absent bool       `json:"player2_absent"`
	PlayedAt      *time.Time `json:"played_at"`
}

// BulkRecordRequest records many matches atomically
type BulkRecordRequest struct {
	Matches []RecordMatchRequest `json:"matches" validate:"required,min=1,max=1000,dive"`
}

// EditMatchRequest carries the new facts of an existing match
type EditMatchRequest struct {
	Goals1        int  `json:"goals1" validate:"min=0,max=99"`
	Goals2        int  `json:"goals2" validate:"min=0,max=99"`
	Player1Absent bool `json:"player1_absent"`
	Player2Absent bool `json:"player2_absent"`
}

// CreatePlayerRequest registers a clan member
type CreatePlayerRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=50"`
	InitialRating *int   `json:"initial_rating" validate:"omitempty,min=0,max=1000"`
}

// CreateTournamentRequest registers a tournament
type CreateTournamentRequest struct {
	Name   string `json:"name" validate:"required,min=2,max=100"`
	Type   string `json:"type" validate:"required,oneof=normal division"`
	Status string `json:"status" validate:"omitempty,oneof=upcoming active finished"`
}

// CreateDivisionRequest adds a division to a division-typed tournament
type CreateDivisionRequest struct {
	Name           string `json:"name" validate:"required,min=1,max=50"`
	StartingRating int    `json:"starting_rating" validate:"min=0,max=1000"`
}

// UpdateDivisionRequest changes a division's starting rating
type UpdateDivisionRequest struct {
	StartingRating int `json:"starting_rating" validate:"min=0,max=1000"`
}

// AssignDivisionRequest places a player into a division
type AssignDivisionRequest struct {
	PlayerID uint `json:"player_id" validate:"required"`
}

// RecalculateRequest starts a recalculation; a nil tournament means everything
type RecalculateRequest struct {
	TournamentID *uint `json:"tournament_id" validate:"omitempty,min=1"`
}
