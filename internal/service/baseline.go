package service

import (
	"context"

	"clanelo/internal/models"
	"clanelo/internal/rating"
	"clanelo/internal/repository"
)

// pickBaseline applies the starting-rating rule: the division's starting
// rating when the tournament is division-typed and the player is assigned,
// else the player's manual override, else the default.
func pickBaseline(t models.Tournament, div *models.Division, p models.Player) int {
	if t.IsDivision() && div != nil {
		return rating.Clamp(div.StartingRating)
	}
	return p.Baseline()
}

// resolveBaseline looks up a single player's baseline for a tournament scope.
// Only consulted at the player's first match in that scope.
func resolveBaseline(ctx context.Context, tx repository.Ledger, t *models.Tournament, p *models.Player) (int, error) {
	if !t.IsDivision() {
		return pickBaseline(*t, nil, *p), nil
	}

	member, err := tx.GetDivisionMember(ctx, t.ID, p.ID)
	if err != nil {
		return 0, err
	}
	if member == nil {
		return pickBaseline(*t, nil, *p), nil
	}

	div, err := tx.GetDivision(ctx, t.ID, member.DivisionID)
	if err != nil {
		return 0, err
	}
	return pickBaseline(*t, div, *p), nil
}

// baselineIndex resolves baselines for a whole replay from preloaded rows
type baselineIndex struct {
	tournaments map[uint]models.Tournament
	divisions   map[uint]models.Division
	members     map[rating.ScopeKey]uint
	players     map[uint]models.Player
}

func loadBaselineIndex(ctx context.Context, tx repository.Ledger, tournamentID *uint, players map[uint]models.Player) (*baselineIndex, error) {
	ix := &baselineIndex{
		tournaments: make(map[uint]models.Tournament),
		divisions:   make(map[uint]models.Division),
		members:     make(map[rating.ScopeKey]uint),
		players:     players,
	}

	tournaments, err := tx.ListTournaments(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tournaments {
		ix.tournaments[t.ID] = t
	}

	divisions, err := tx.ListDivisions(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	for _, d := range divisions {
		ix.divisions[d.ID] = d
	}

	members, err := tx.ListDivisionMembers(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		ix.members[rating.ScopeKey{PlayerID: m.PlayerID, TournamentID: m.TournamentID}] = m.DivisionID
	}
	return ix, nil
}

func (ix *baselineIndex) resolve(k rating.ScopeKey) int {
	var div *models.Division
	if divisionID, ok := ix.members[k]; ok {
		if d, ok := ix.divisions[divisionID]; ok && d.TournamentID == k.TournamentID {
			div = &d
		}
	}
	return pickBaseline(ix.tournaments[k.TournamentID], div, ix.players[k.PlayerID])
}

// forMatches pre-resolves the baseline of every tracked scope in matches
func (ix *baselineIndex) forMatches(matches []models.Match) map[rating.ScopeKey]int {
	baselines := make(map[rating.ScopeKey]int)
	add := func(playerID, tournamentID uint) {
		k := rating.ScopeKey{PlayerID: playerID, TournamentID: tournamentID}
		if _, ok := baselines[k]; !ok {
			baselines[k] = ix.resolve(k)
		}
	}
	for _, m := range matches {
		add(m.Player1ID, m.TournamentID)
		if m.Player2ID != nil {
			add(*m.Player2ID, m.TournamentID)
		}
	}
	return baselines
}
