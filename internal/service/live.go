package service

import (
	"context"

	"clanelo/internal/models"
	"clanelo/internal/rating"
	"clanelo/internal/repository"
)

// liveState is the stored aggregate state of the players one ledger entry
// touches, loaded into the same reductions replay uses
type liveState struct {
	tournamentID uint
	scoped       rating.ScopedState
	global       rating.GlobalState
	players      map[uint]*models.Player
	hasStats     map[rating.ScopeKey]bool
}

func loadLive(ctx context.Context, tx repository.Ledger, t *models.Tournament, players ...*models.Player) (*liveState, error) {
	ls := &liveState{
		tournamentID: t.ID,
		scoped:       rating.NewScopedState(nil),
		global:       rating.NewGlobalState(nil, nil),
		players:      make(map[uint]*models.Player, len(players)),
		hasStats:     make(map[rating.ScopeKey]bool, len(players)),
	}

	for _, p := range players {
		ls.players[p.ID] = p
		ls.global.Seeds[p.ID] = p.Baseline()
		if p.Rating != nil {
			ls.global.Ratings[p.ID] = *p.Rating
		}
		ls.global.Stats[p.ID] = p.Counters

		k := rating.ScopeKey{PlayerID: p.ID, TournamentID: t.ID}
		stats, err := tx.GetTournamentStats(ctx, p.ID, t.ID)
		if err != nil {
			return nil, err
		}
		if stats != nil {
			ls.scoped.Ratings[k] = stats.Rating
			ls.scoped.Stats[k] = stats.Counters
			ls.hasStats[k] = true
			continue
		}

		// first match in this scope
		baseline, err := resolveBaseline(ctx, tx, t, p)
		if err != nil {
			return nil, err
		}
		ls.scoped.Baselines[k] = baseline
	}
	return ls, nil
}

// apply folds one entry into both reductions
func (ls *liveState) apply(ev rating.Event) rating.Outcome {
	var o rating.Outcome
	ls.scoped, o = rating.ReduceScoped(ls.scoped, ev)
	ls.global = rating.ReduceGlobal(ls.global, ev, o)
	return o
}

// reverse subtracts exactly what m stored: its effective deltas and its
// counter contributions, from both the scoped and the global aggregates
func (ls *liveState) reverse(m *models.Match) error {
	o := m.Outcome()

	type side struct {
		s     rating.Side
		id    uint
		delta int
	}
	sides := []side{{rating.Side1, m.Player1ID, o.Delta1()}}
	if m.Player2ID != nil {
		sides = append(sides, side{rating.Side2, *m.Player2ID, o.Delta2()})
	}

	for _, sd := range sides {
		contribution := rating.Contribution(o, sd.s)

		k := rating.ScopeKey{PlayerID: sd.id, TournamentID: ls.tournamentID}
		if !ls.hasStats[k] {
			return consistencyf("match %d: player %d has no stats in tournament %d", m.ID, sd.id, ls.tournamentID)
		}
		scopedRating := ls.scoped.Current(k) - sd.delta
		scopedStats := ls.scoped.Stats[k].Sub(contribution)
		if scopedRating != rating.Clamp(scopedRating) || !scopedStats.Valid() {
			return consistencyf("match %d: tournament aggregate of player %d cannot be reversed", m.ID, sd.id)
		}

		globalRating, ok := ls.global.Ratings[sd.id]
		if !ok {
			return consistencyf("match %d: player %d has no global rating", m.ID, sd.id)
		}
		globalRating -= sd.delta
		globalStats := ls.global.Stats[sd.id].Sub(contribution)
		if globalRating != rating.Clamp(globalRating) || !globalStats.Valid() {
			return consistencyf("match %d: global aggregate of player %d cannot be reversed", m.ID, sd.id)
		}

		ls.scoped.Ratings[k] = scopedRating
		ls.scoped.Stats[k] = scopedStats
		ls.global.Ratings[sd.id] = globalRating
		ls.global.Stats[sd.id] = globalStats
	}
	return nil
}

// save writes the reduced aggregates of every loaded player
func (ls *liveState) save(ctx context.Context, tx repository.Ledger) error {
	for id, p := range ls.players {
		if r, ok := ls.global.Ratings[id]; ok {
			p.Rating = &r
		}
		p.Counters = ls.global.Stats[id]
		if err := tx.SavePlayerAggregate(ctx, p); err != nil {
			return err
		}

		k := rating.ScopeKey{PlayerID: id, TournamentID: ls.tournamentID}
		if _, ok := ls.scoped.Ratings[k]; !ok {
			continue
		}
		stats := &models.PlayerTournamentStats{
			PlayerID:     id,
			TournamentID: ls.tournamentID,
			Rating:       ls.scoped.Current(k),
			Counters:     ls.scoped.Stats[k],
		}
		if err := tx.UpsertTournamentStats(ctx, stats); err != nil {
			return err
		}
	}
	return nil
}
