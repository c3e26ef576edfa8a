package service

import (
	"context"

	"clanelo/internal/models"
	"clanelo/internal/rating"
	"clanelo/internal/repository"

	"github.com/rs/zerolog/log"
)

// CreatePlayer registers a clan member. The player stays unrated until the
// first recorded match.
func (e *Engine) CreatePlayer(ctx context.Context, req models.CreatePlayerRequest) (*models.Player, error) {
	if err := e.validateStruct(req); err != nil {
		return nil, err
	}

	p := &models.Player{Name: req.Name, InitialRating: req.InitialRating}
	if err := e.ledger.CreatePlayer(ctx, p); err != nil {
		return nil, storeErr("create player", err)
	}
	log.Info().Uint("player_id", p.ID).Str("name", p.Name).Msg("player created")
	return p, nil
}

// CreateTournament registers a tournament
func (e *Engine) CreateTournament(ctx context.Context, req models.CreateTournamentRequest) (*models.Tournament, error) {
	if err := e.validateStruct(req); err != nil {
		return nil, err
	}

	t := &models.Tournament{
		Name:   req.Name,
		Type:   models.TournamentType(req.Type),
		Status: models.StatusActive,
	}
	if req.Status != "" {
		t.Status = models.TournamentStatus(req.Status)
	}
	if err := e.ledger.CreateTournament(ctx, t); err != nil {
		return nil, storeErr("create tournament", err)
	}
	log.Info().Uint("tournament_id", t.ID).Str("type", string(t.Type)).Msg("tournament created")
	return t, nil
}

// CreateDivision adds a rating bracket to a division-typed tournament
func (e *Engine) CreateDivision(ctx context.Context, tournamentID uint, req models.CreateDivisionRequest) (*models.Division, error) {
	if err := e.validateStruct(req); err != nil {
		return nil, err
	}

	var d *models.Division
	err := e.mutate(ctx, "create division", func(tx repository.Ledger, _ touched) error {
		t, err := tx.GetTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		if !t.IsDivision() {
			return validationf("tournament %d is not division-typed", tournamentID)
		}
		d = &models.Division{
			TournamentID:   t.ID,
			Name:           req.Name,
			StartingRating: rating.Clamp(req.StartingRating),
		}
		return tx.CreateDivision(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDivisionBaseline changes a division's starting rating. Recorded
// snapshots keep the old baseline until the next recalculation.
func (e *Engine) UpdateDivisionBaseline(ctx context.Context, divisionID uint, req models.UpdateDivisionRequest) (*models.Division, error) {
	if err := e.validateStruct(req); err != nil {
		return nil, err
	}

	var d *models.Division
	err := e.mutate(ctx, "update division", func(tx repository.Ledger, _ touched) error {
		if err := tx.UpdateDivisionBaseline(ctx, divisionID, req.StartingRating); err != nil {
			return err
		}
		var err error
		d, err = tx.GetDivisionByID(ctx, divisionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint("division_id", d.ID).Int("starting_rating", d.StartingRating).
		Msg("division baseline changed; recalculate to apply it to recorded matches")
	return d, nil
}

// AssignDivision places a player into a division of its tournament
func (e *Engine) AssignDivision(ctx context.Context, divisionID uint, req models.AssignDivisionRequest) (*models.DivisionMember, error) {
	if err := e.validateStruct(req); err != nil {
		return nil, err
	}

	var m *models.DivisionMember
	err := e.mutate(ctx, "assign division", func(tx repository.Ledger, _ touched) error {
		d, err := tx.GetDivisionByID(ctx, divisionID)
		if err != nil {
			return err
		}
		if _, err := tx.GetPlayer(ctx, req.PlayerID); err != nil {
			return err
		}
		m = &models.DivisionMember{
			TournamentID: d.TournamentID,
			PlayerID:     req.PlayerID,
			DivisionID:   d.ID,
		}
		return tx.AssignDivision(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
