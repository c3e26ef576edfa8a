package service

import (
	"context"

	"clanelo/internal/models"
	"clanelo/internal/rating"
	"clanelo/internal/repository"

	"github.com/rs/zerolog/log"
)

// EditMatch changes the facts of a ledger entry. With auto recalculation
// on, the entry is rewritten and its tournament replayed from scratch.
// Otherwise the stored effect is reversed and the new facts are applied to
// the post-reversal ratings, leaving later entries untouched.
func (e *Engine) EditMatch(ctx context.Context, matchID uint, req models.EditMatchRequest) (*models.Match, error) {
	if err := e.validateStruct(req); err != nil {
		return nil, err
	}
	facts := rating.Facts{
		Goals1:  req.Goals1,
		Goals2:  req.Goals2,
		Absent1: req.Player1Absent,
		Absent2: req.Player2Absent,
	}

	var out *models.Match
	err := e.mutate(ctx, "edit match", func(tx repository.Ledger, t touched) error {
		m, err := tx.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}

		if e.autoRecalculate {
			// provisional snapshot, the replay rewrites it
			m.ApplyOutcome(rating.Evaluate(m.RatingBefore1, m.RatingBefore2, facts))
			if err := tx.UpdateMatch(ctx, m); err != nil {
				return err
			}
			t.add(participants(m)...)
			if err := e.replayTournaments(ctx, tx, t, m.TournamentID); err != nil {
				return err
			}
		} else if err := e.pointEdit(ctx, tx, m, facts, t); err != nil {
			return err
		}

		out, err = tx.GetMatch(ctx, m.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint("match_id", out.ID).Bool("replayed", e.autoRecalculate).Msg("match edited")
	return out, nil
}

// pointEdit reverses the stored effect of m and applies facts in its place
func (e *Engine) pointEdit(ctx context.Context, tx repository.Ledger, m *models.Match, facts rating.Facts, t touched) error {
	live, err := e.loadLiveFor(ctx, tx, m)
	if err != nil {
		return err
	}
	if err := live.reverse(m); err != nil {
		return err
	}

	ev := m.Event()
	ev.Facts = facts
	m.ApplyOutcome(live.apply(ev))

	if err := tx.UpdateMatch(ctx, m); err != nil {
		return err
	}
	if err := live.save(ctx, tx); err != nil {
		return err
	}
	t.add(participants(m)...)
	return nil
}

// DeleteMatch removes a ledger entry. With auto recalculation on, its
// tournament is replayed without it; otherwise its stored effect is reversed.
func (e *Engine) DeleteMatch(ctx context.Context, matchID uint) error {
	err := e.mutate(ctx, "delete match", func(tx repository.Ledger, t touched) error {
		m, err := tx.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}

		if !e.autoRecalculate {
			live, err := e.loadLiveFor(ctx, tx, m)
			if err != nil {
				return err
			}
			if err := live.reverse(m); err != nil {
				return err
			}
			if err := live.save(ctx, tx); err != nil {
				return err
			}
		}

		if err := tx.DeleteMatch(ctx, m.ID); err != nil {
			return err
		}
		t.add(participants(m)...)

		if e.autoRecalculate {
			return e.replayTournaments(ctx, tx, t, m.TournamentID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Uint("match_id", matchID).Bool("replayed", e.autoRecalculate).Msg("match deleted")
	return nil
}

// GetMatch returns one ledger entry
func (e *Engine) GetMatch(ctx context.Context, matchID uint) (*models.Match, error) {
	m, err := e.ledger.GetMatch(ctx, matchID)
	if err != nil {
		return nil, storeErr("get match", err)
	}
	return m, nil
}

// loadLiveFor loads the aggregates a point reversal of m works on
func (e *Engine) loadLiveFor(ctx context.Context, tx repository.Ledger, m *models.Match) (*liveState, error) {
	tournament, err := tx.GetTournament(ctx, m.TournamentID)
	if err != nil {
		return nil, err
	}

	var players []*models.Player
	for _, id := range participants(m) {
		p, err := tx.GetPlayer(ctx, id)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}

	return loadLive(ctx, tx, tournament, players...)
}

// participants returns the tracked players of an entry
func participants(m *models.Match) []uint {
	ids := []uint{m.Player1ID}
	if m.Player2ID != nil {
		ids = append(ids, *m.Player2ID)
	}
	return ids
}
