package models

import (
	"slices"
	"time"

	"clanelo/internal/rating"
)

// Match is one ledger entry with its before/after rating snapshot.
// Player2ID is nil when the opponent is an untracked guest.
type Match struct {
	ID           uint   `gorm:"primarykey" json:"match_id"`
	TournamentID uint   `gorm:"not null;index" json:"tournament_id"`
	Player1ID    uint   `gorm:"not null;index" json:"player1_id"`
	Player2ID    *uint  `gorm:"index" json:"player2_id"`
	GuestName    string `json:"guest_name,omitempty"`

	Goals1 int `gorm:"not null;default:0" json:"goals1"`
	Goals2 int `gorm:"not null;default:0" json:"goals2"`

	IsDraw        bool `gorm:"not null;default:false" json:"is_draw"`
	IsWalkover    bool `gorm:"not null;default:false" json:"is_walkover"`
	IsNullMatch   bool `gorm:"not null;default:false" json:"is_null_match"`
	Player1Absent bool `gorm:"not null;default:false" json:"player1_absent"`
	Player2Absent bool `gorm:"not null;default:false" json:"player2_absent"`

	WinnerID *uint `json:"winner_id"`

	RatingBefore1 int `gorm:"not null" json:"rating_before1"`
	RatingAfter1  int `gorm:"not null" json:"rating_after1"`
	RatingBefore2 int `gorm:"not null" json:"rating_before2"`
	RatingAfter2  int `gorm:"not null" json:"rating_after2"`

	PlayedAt  *time.Time `gorm:"index" json:"played_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Match) TableName() string {
	return "matches"
}

// Facts returns the editable inputs of the entry
func (m Match) Facts() rating.Facts {
	return rating.Facts{
		Goals1:  m.Goals1,
		Goals2:  m.Goals2,
		Absent1: m.Player1Absent,
		Absent2: m.Player2Absent,
	}
}

// Event converts the entry for the rating reductions
func (m Match) Event() rating.Event {
	return rating.Event{
		MatchID:      m.ID,
		TournamentID: m.TournamentID,
		Player1ID:    m.Player1ID,
		Player2ID:    m.Player2ID,
		Facts:        m.Facts(),
	}
}

// Kind returns the stored classification
func (m Match) Kind() rating.Kind {
	switch {
	case m.IsNullMatch:
		return rating.KindNull
	case m.IsWalkover:
		return rating.KindWalkover
	default:
		return rating.KindNormal
	}
}

// Outcome rebuilds the outcome exactly as it was stored, without recomputing deltas
func (m Match) Outcome() rating.Outcome {
	o := rating.Outcome{
		Facts:   m.Facts(),
		Kind:    m.Kind(),
		IsDraw:  m.IsDraw,
		Before1: m.RatingBefore1,
		After1:  m.RatingAfter1,
		Before2: m.RatingBefore2,
		After2:  m.RatingAfter2,
	}
	switch {
	case m.WinnerID == nil:
	case *m.WinnerID == m.Player1ID:
		o.Winner = rating.Side1
	case m.Player2ID != nil && *m.WinnerID == *m.Player2ID:
		o.Winner = rating.Side2
	}
	// guest wins have no winner id
	if o.Kind != rating.KindNull && !o.IsDraw && o.Winner == 0 {
		o.Winner = rating.Side2
	}
	return o
}

// ApplyOutcome stores the classification and snapshot of an evaluated outcome
func (m *Match) ApplyOutcome(o rating.Outcome) {
	m.Goals1, m.Goals2 = o.Facts.Goals1, o.Facts.Goals2
	m.Player1Absent, m.Player2Absent = o.Facts.Absent1, o.Facts.Absent2

	m.IsNullMatch = o.Kind == rating.KindNull
	m.IsWalkover = o.Kind == rating.KindWalkover
	m.IsDraw = o.IsDraw

	m.WinnerID = nil
	switch o.Winner {
	case rating.Side1:
		id := m.Player1ID
		m.WinnerID = &id
	case rating.Side2:
		if m.Player2ID != nil {
			id := *m.Player2ID
			m.WinnerID = &id
		}
	}

	m.RatingBefore1, m.RatingAfter1 = o.Before1, o.After1
	m.RatingBefore2, m.RatingAfter2 = o.Before2, o.After2
}

// ledgerCompare orders entries by played_at then match id. Entries without
// a timestamp sort before all timestamped entries.
func ledgerCompare(a, b Match) int {
	switch {
	case a.PlayedAt == nil && b.PlayedAt != nil:
		return -1
	case a.PlayedAt != nil && b.PlayedAt == nil:
		return 1
	case a.PlayedAt != nil && b.PlayedAt != nil && !a.PlayedAt.Equal(*b.PlayedAt):
		return a.PlayedAt.Compare(*b.PlayedAt)
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// SortLedger sorts entries into replay order in place
func SortLedger(matches []Match) {
	slices.SortStableFunc(matches, ledgerCompare)
}
