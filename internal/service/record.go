package service

import (
	"context"
	"strings"
	"time"

	"clanelo/internal/models"
	"clanelo/internal/rating"
	"clanelo/internal/repository"

	"github.com/rs/zerolog/log"
)

// RecordMatch appends one ledger entry and updates the scoped and global
// aggregates of both tracked players atomically
func (e *Engine) RecordMatch(ctx context.Context, req models.RecordMatchRequest) (*models.Match, error) {
	if err := e.checkRecord(req); err != nil {
		return nil, err
	}

	var out *models.Match
	err := e.mutate(ctx, "record match", func(tx repository.Ledger, t touched) error {
		m, backdated, err := e.recordOne(ctx, tx, req, t)
		if err != nil {
			return err
		}
		if backdated && e.autoRecalculate {
			if err := e.replayTournaments(ctx, tx, t, m.TournamentID); err != nil {
				return err
			}
		}
		out, err = tx.GetMatch(ctx, m.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Uint("match_id", out.ID).
		Uint("tournament_id", out.TournamentID).
		Int("delta1", out.RatingAfter1-out.RatingBefore1).
		Int("delta2", out.RatingAfter2-out.RatingBefore2).
		Msg("match recorded")
	return out, nil
}

// RecordMatches records a batch in one transaction; any failure rolls back
// the whole batch
func (e *Engine) RecordMatches(ctx context.Context, req models.BulkRecordRequest) ([]models.Match, error) {
	if err := e.validateStruct(req); err != nil {
		return nil, err
	}
	for i, r := range req.Matches {
		if err := e.checkRecord(r); err != nil {
			return nil, validationf("matches[%d]: %v", i, err)
		}
	}

	var out []models.Match
	err := e.mutate(ctx, "record matches", func(tx repository.Ledger, t touched) error {
		ids := make([]uint, 0, len(req.Matches))
		var stale []uint
		for _, r := range req.Matches {
			m, backdated, err := e.recordOne(ctx, tx, r, t)
			if err != nil {
				return err
			}
			ids = append(ids, m.ID)
			if backdated && e.autoRecalculate {
				stale = append(stale, m.TournamentID)
			}
		}

		if err := e.replayTournaments(ctx, tx, t, stale...); err != nil {
			return err
		}

		out = make([]models.Match, 0, len(ids))
		for _, id := range ids {
			m, err := tx.GetMatch(ctx, id)
			if err != nil {
				return err
			}
			out = append(out, *m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int("matches", len(out)).Msg("bulk import recorded")
	return out, nil
}

// checkRecord validates the request shape before any store access
func (e *Engine) checkRecord(req models.RecordMatchRequest) error {
	if err := e.validateStruct(req); err != nil {
		return err
	}

	guest := strings.TrimSpace(req.GuestName)
	switch {
	case req.Player2ID == nil && guest == "":
		return validationf("an opponent is required: player2_id or guest_name")
	case req.Player2ID != nil && guest != "":
		return validationf("player2_id and guest_name are mutually exclusive")
	case req.Player2ID != nil && *req.Player2ID == req.Player1ID:
		return validationf("player %d cannot play against themselves", req.Player1ID)
	}
	return nil
}

// recordOne runs the recording steps inside tx. backdated reports whether
// the new entry sorts before an existing entry of its tournament; with auto
// recalculation on, the caller then replays that tournament.
func (e *Engine) recordOne(ctx context.Context, tx repository.Ledger, req models.RecordMatchRequest, t touched) (*models.Match, bool, error) {
	tournament, err := tx.GetTournament(ctx, req.TournamentID)
	if err != nil {
		return nil, false, err
	}

	p1, err := tx.GetPlayer(ctx, req.Player1ID)
	if err != nil {
		return nil, false, err
	}
	players := []*models.Player{p1}

	if req.Player2ID != nil {
		p2, err := tx.GetPlayer(ctx, *req.Player2ID)
		if err != nil {
			return nil, false, err
		}
		players = append(players, p2)
	}

	live, err := loadLive(ctx, tx, tournament, players...)
	if err != nil {
		return nil, false, err
	}

	playedAt := e.now()
	if req.PlayedAt != nil {
		playedAt = req.PlayedAt.UTC()
	}
	// postgres keeps microseconds
	playedAt = playedAt.Truncate(time.Microsecond)

	m := &models.Match{
		TournamentID: tournament.ID,
		Player1ID:    p1.ID,
		Player2ID:    req.Player2ID,
		GuestName:    strings.TrimSpace(req.GuestName),
		PlayedAt:     &playedAt,
	}
	facts := rating.Facts{
		Goals1:  req.Goals1,
		Goals2:  req.Goals2,
		Absent1: req.Player1Absent,
		Absent2: req.Player2Absent,
	}

	ev := m.Event()
	ev.Facts = facts
	m.ApplyOutcome(live.apply(ev))

	if err := tx.AppendMatch(ctx, m); err != nil {
		return nil, false, err
	}
	if err := live.save(ctx, tx); err != nil {
		return nil, false, err
	}
	for _, p := range players {
		t.add(p.ID)
	}

	backdated, err := tx.HasMatchesAfter(ctx, m)
	if err != nil {
		return nil, false, err
	}
	return m, backdated, nil
}
