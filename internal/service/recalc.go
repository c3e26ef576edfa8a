package service

import (
	"cmp"
	"context"
	"slices"

	"clanelo/internal/models"
	"clanelo/internal/rating"
	"clanelo/internal/repository"

	"github.com/rs/zerolog/log"
)

// Scope selects what a recalculation rebuilds. A nil TournamentID means
// the entire ledger.
type Scope struct {
	TournamentID *uint
}

// RecalcResult summarizes a completed recalculation
type RecalcResult struct {
	PlayersUpdated   int `json:"players_updated"`
	MatchesProcessed int `json:"matches_processed"`
}

// ProgressFunc receives recalculation events as they happen. It is called
// synchronously from the replay loop and must not block.
type ProgressFunc func(models.ProgressEvent)

// Recalculate rebuilds every rating snapshot and aggregate in scope by
// replaying the ledger from scratch. The run is a single transaction:
// cancellation or any failure leaves the store exactly as it was.
func (e *Engine) Recalculate(ctx context.Context, scope Scope, progress ProgressFunc) (RecalcResult, error) {
	if progress == nil {
		progress = func(models.ProgressEvent) {}
	}

	var result RecalcResult
	err := e.mutate(ctx, "recalculate", func(tx repository.Ledger, t touched) error {
		if scope.TournamentID != nil {
			if _, err := tx.GetTournament(ctx, *scope.TournamentID); err != nil {
				return err
			}
		}
		var err error
		result, err = e.replay(ctx, tx, scope, t, progress)
		return err
	})
	if err != nil {
		progress(models.ProgressEvent{
			Type:    models.EventError,
			Payload: models.ProgressPayload{TournamentID: scope.TournamentID, Message: err.Error()},
		})
		return RecalcResult{}, err
	}

	progress(models.ProgressEvent{
		Type: models.EventComplete,
		Payload: models.ProgressPayload{
			TournamentID:     scope.TournamentID,
			Total:            result.MatchesProcessed,
			Processed:        result.MatchesProcessed,
			PlayersUpdated:   result.PlayersUpdated,
			MatchesProcessed: result.MatchesProcessed,
		},
	})

	log.Info().
		Interface("tournament_id", scope.TournamentID).
		Int("players_updated", result.PlayersUpdated).
		Int("matches_processed", result.MatchesProcessed).
		Msg("recalculation committed")
	return result, nil
}

// replayTournaments rebuilds each distinct tournament inside an open transaction
func (e *Engine) replayTournaments(ctx context.Context, tx repository.Ledger, t touched, tournamentIDs ...uint) error {
	slices.Sort(tournamentIDs)
	for _, id := range slices.Compact(tournamentIDs) {
		if _, err := e.replay(ctx, tx, Scope{TournamentID: &id}, t, func(models.ProgressEvent) {}); err != nil {
			return err
		}
	}
	return nil
}

// replay runs both reductions over the scope inside tx:
//  1. wipe the scope's tournament stats
//  2. seed every (player, tournament) from its baseline and run the scoped
//     reduction in ledger order, flushing snapshots every batchSize entries
//  3. write the rebuilt tournament stats
//  4. refold the affected players' global aggregates over the full ledger
func (e *Engine) replay(ctx context.Context, tx repository.Ledger, scope Scope, t touched, progress ProgressFunc) (RecalcResult, error) {
	matches, err := tx.ListMatches(ctx, scope.TournamentID)
	if err != nil {
		return RecalcResult{}, err
	}

	playerList, err := tx.ListPlayers(ctx)
	if err != nil {
		return RecalcResult{}, err
	}
	players := make(map[uint]models.Player, len(playerList))
	for _, p := range playerList {
		players[p.ID] = p
	}

	ix, err := loadBaselineIndex(ctx, tx, scope.TournamentID, players)
	if err != nil {
		return RecalcResult{}, err
	}

	if err := tx.DeleteTournamentStats(ctx, scope.TournamentID); err != nil {
		return RecalcResult{}, err
	}

	total := len(matches)
	progress(models.ProgressEvent{
		Type:    models.EventStart,
		Payload: models.ProgressPayload{TournamentID: scope.TournamentID, Total: total},
	})

	st := rating.NewScopedState(ix.forMatches(matches))
	pending := 0
	for i := range matches {
		if err := ctx.Err(); err != nil {
			return RecalcResult{}, err
		}

		var o rating.Outcome
		st, o = rating.ReduceScoped(st, matches[i].Event())
		matches[i].ApplyOutcome(o)
		pending++

		if pending == e.batchSize {
			if err := tx.SaveMatchSnapshots(ctx, matches[i+1-pending:i+1], e.batchSize); err != nil {
				return RecalcResult{}, err
			}
			pending = 0
		}

		progress(models.ProgressEvent{
			Type: models.EventProgress,
			Payload: models.ProgressPayload{
				TournamentID: scope.TournamentID,
				Total:        total,
				Processed:    i + 1,
				MatchID:      matches[i].ID,
			},
		})
	}
	if pending > 0 {
		if err := tx.SaveMatchSnapshots(ctx, matches[total-pending:], e.batchSize); err != nil {
			return RecalcResult{}, err
		}
	}

	if err := tx.InsertTournamentStats(ctx, scopedRows(st), e.batchSize); err != nil {
		return RecalcResult{}, err
	}

	affected, err := e.refoldGlobal(ctx, tx, scope, matches, players, t)
	if err != nil {
		return RecalcResult{}, err
	}
	t.add(affected...)

	return RecalcResult{PlayersUpdated: len(affected), MatchesProcessed: total}, nil
}

// refoldGlobal recomputes global ratings and counters from scratch for the
// players in scope by folding every ledger entry's stored deltas in order.
// A tournament scope covers its participants plus the players the current
// mutation already touched, so a deleted entry's players are refolded too.
func (e *Engine) refoldGlobal(ctx context.Context, tx repository.Ledger, scope Scope, scoped []models.Match, players map[uint]models.Player, t touched) ([]uint, error) {
	var affected []uint
	var only map[uint]bool
	ledger := scoped

	if scope.TournamentID == nil {
		for id := range players {
			affected = append(affected, id)
		}
	} else {
		only = make(map[uint]bool)
		include := func(id uint) {
			if _, ok := players[id]; ok && !only[id] {
				only[id] = true
				affected = append(affected, id)
			}
		}
		for id := range t {
			include(id)
		}
		for _, m := range scoped {
			for _, id := range participants(&m) {
				include(id)
			}
		}
		if len(affected) == 0 {
			return nil, nil
		}

		var err error
		ledger, err = tx.ListMatches(ctx, nil)
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(affected)

	seeds := make(map[uint]int, len(affected))
	for _, id := range affected {
		seeds[id] = players[id].Baseline()
	}

	gs := rating.NewGlobalState(seeds, only)
	for _, m := range ledger {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gs = rating.ReduceGlobal(gs, m.Event(), m.Outcome())
	}

	for _, id := range affected {
		p := players[id]
		p.Rating = nil
		if r, ok := gs.Ratings[id]; ok {
			p.Rating = &r
		}
		p.Counters = gs.Stats[id]
		if err := tx.SavePlayerAggregate(ctx, &p); err != nil {
			return nil, err
		}
	}
	return affected, nil
}

// scopedRows converts the scoped state into stats rows in a stable order
func scopedRows(st rating.ScopedState) []models.PlayerTournamentStats {
	rows := make([]models.PlayerTournamentStats, 0, len(st.Ratings))
	for k, r := range st.Ratings {
		rows = append(rows, models.PlayerTournamentStats{
			PlayerID:     k.PlayerID,
			TournamentID: k.TournamentID,
			Rating:       r,
			Counters:     st.Stats[k],
		})
	}
	slices.SortFunc(rows, func(a, b models.PlayerTournamentStats) int {
		return cmp.Or(
			cmp.Compare(a.TournamentID, b.TournamentID),
			cmp.Compare(a.PlayerID, b.PlayerID),
		)
	})
	return rows
}
