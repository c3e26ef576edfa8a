package service

import (
	"context"
	"errors"
	"fmt"

	"clanelo/internal/models"
	"clanelo/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// recentMatchLimit bounds the match history on a player profile
const recentMatchLimit = 20

// LeaderboardService serves rating reads: the Redis leaderboard projection
// for global ranks, the ledger store for profiles and tournament tables
type LeaderboardService struct {
	redisRepo *repository.RedisRepository
	ledger    repository.Ledger
	pinger    interface{ Ping(context.Context) error }
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(redisRepo *repository.RedisRepository, ledger *repository.LedgerRepository) *LeaderboardService {
	return &LeaderboardService{
		redisRepo: redisRepo,
		ledger:    ledger,
		pinger:    ledger,
	}
}

// GetLeaderboard retrieves the leaderboard with tie-aware ranking (1224)
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, offset, limit int) (*models.LeaderboardResponse, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	players, err := s.redisRepo.GetTopPlayers(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}

	total, err := s.redisRepo.GetTotalPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get total players: %w", err)
	}

	entries, err := s.applyTieAwareRanking(ctx, players, offset)
	if err != nil {
		return nil, err
	}

	return &models.LeaderboardResponse{
		Data:   entries,
		Offset: offset,
		Limit:  limit,
		Total:  total,
	}, nil
}

// SearchPlayer returns a player's tie-aware global rank and rating
func (s *LeaderboardService) SearchPlayer(ctx context.Context, name string) (*models.SearchResponse, error) {
	r, err := s.redisRepo.GetRating(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotRanked) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to get player rating: %w", err)
	}

	higher, err := s.redisRepo.CountHigherRatings(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to get player rank: %w", err)
	}

	return &models.SearchResponse{
		GlobalRank: int(higher) + 1,
		Name:       name,
		Rating:     r,
	}, nil
}

// applyTieAwareRanking applies the 1224 ranking system.
// Players with the same rating share a rank and the next rank skips ahead
// by the size of the tie. A tie straddling the page start keeps its rank.
func (s *LeaderboardService) applyTieAwareRanking(ctx context.Context, players []redis.Z, offset int) ([]models.LeaderboardEntry, error) {
	entries := make([]models.LeaderboardEntry, 0, len(players))
	if len(players) == 0 {
		return entries, nil
	}

	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Member.(string)
	}

	ratings, err := s.redisRepo.GetRatingBatch(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ratings for ranking: %w", err)
	}

	currentRank := offset + 1
	if offset > 0 {
		higher, err := s.redisRepo.CountHigherRatings(ctx, ratings[names[0]])
		if err != nil {
			return nil, fmt.Errorf("failed to rank page start: %w", err)
		}
		currentRank = int(higher) + 1
	}

	var previousRating int
	for i, name := range names {
		r := ratings[name]
		if i > 0 && r != previousRating {
			currentRank = offset + i + 1
		}
		previousRating = r

		entries = append(entries, models.LeaderboardEntry{
			Rank:   currentRank,
			Name:   name,
			Rating: r,
		})
	}
	return entries, nil
}

// GetPlayerProfile loads a player's global aggregate, per-tournament
// aggregates and recent matches concurrently
func (s *LeaderboardService) GetPlayerProfile(ctx context.Context, playerID uint) (*models.PlayerProfile, error) {
	var profile models.PlayerProfile

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.ledger.GetPlayer(gctx, playerID)
		if err != nil {
			return err
		}
		profile.Player = *p
		return nil
	})
	g.Go(func() error {
		stats, err := s.ledger.ListPlayerStats(gctx, playerID)
		profile.Tournaments = stats
		return err
	})
	g.Go(func() error {
		matches, err := s.ledger.ListPlayerMatches(gctx, playerID, recentMatchLimit)
		profile.RecentMatches = matches
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, storeErr("player profile", err)
	}
	return &profile, nil
}

// GetStandings returns a tournament table ranked by scoped rating (1224)
func (s *LeaderboardService) GetStandings(ctx context.Context, tournamentID uint) (*models.StandingsResponse, error) {
	t, err := s.ledger.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, storeErr("standings", err)
	}

	var (
		stats   []models.PlayerTournamentStats
		players []models.Player
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats, err = s.ledger.ListTournamentStats(gctx, tournamentID)
		return err
	})
	g.Go(func() (err error) {
		players, err = s.ledger.ListPlayers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr("standings", err)
	}

	names := make(map[uint]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}

	resp := &models.StandingsResponse{
		Tournament: *t,
		Standings:  make([]models.StandingEntry, 0, len(stats)),
	}
	rank := 1
	for i, st := range stats {
		if i > 0 && st.Rating != stats[i-1].Rating {
			rank = i + 1
		}
		resp.Standings = append(resp.Standings, models.StandingEntry{
			Rank:     rank,
			PlayerID: st.PlayerID,
			Name:     names[st.PlayerID],
			Rating:   st.Rating,
			Counters: st.Counters,
		})
	}
	return resp, nil
}

// SyncRedisFromDatabase rebuilds the leaderboard projection from the
// players' committed global ratings. Used at startup and after a full
// recalculation.
func (s *LeaderboardService) SyncRedisFromDatabase(ctx context.Context) error {
	players, err := s.ledger.ListPlayers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list players: %w", err)
	}

	ratings := make(map[string]int, len(players))
	for _, p := range players {
		if p.Rating != nil {
			ratings[p.Name] = *p.Rating
		}
	}

	if err := s.redisRepo.ReplaceAll(ctx, ratings); err != nil {
		return fmt.Errorf("failed to sync to Redis: %w", err)
	}

	log.Info().Int("players", len(ratings)).Msg("leaderboard projection synced")
	return nil
}

// HealthCheck checks the health of both Redis and the database
func (s *LeaderboardService) HealthCheck(ctx context.Context) error {
	if err := s.redisRepo.Ping(ctx); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	if err := s.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
