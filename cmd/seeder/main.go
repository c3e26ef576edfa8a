package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"clanelo/internal/config"
	"clanelo/internal/lock"
	"clanelo/internal/models"
	"clanelo/internal/repository"
	"clanelo/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	TotalPlayers       = 40
	MatchesPerEvent    = 300
	BatchSize          = 100
	PlayerPrefix       = "member_"
	GuestProbability   = 0.05
	AbsenceProbability = 0.04
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	cfg.SetupLogger()

	db, err := repository.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}

	ledgerRepo := repository.NewLedgerRepository(db)
	redisRepo := repository.NewRedisRepository(redisClient)
	defer ledgerRepo.Close()
	defer redisRepo.Close()

	if err := ledgerRepo.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Imports replay once at the end instead of per backdated batch
	engine := service.NewEngine(ledgerRepo, lock.NewLocal(0), nil, service.Options{
		AutoRecalculate: false,
		BatchSize:       cfg.Engine.BatchSize,
	})
	leaderboard := service.NewLeaderboardService(redisRepo, ledgerRepo)

	ctx := context.Background()
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 42))

	players, err := seedPlayers(ctx, engine)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed players")
	}

	league, cup, err := seedTournaments(ctx, engine, players)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed tournaments")
	}

	start := time.Now().UTC().AddDate(0, -6, 0)
	for _, t := range []*models.Tournament{league, cup} {
		if err := seedMatches(ctx, engine, rng, t, players, start); err != nil {
			log.Fatal().Err(err).Str("tournament", t.Name).Msg("failed to import matches")
		}
	}

	// Bulk imports arrive out of order; replay once so every snapshot is consistent
	result, err := engine.Recalculate(ctx, service.Scope{}, func(ev models.ProgressEvent) {
		if ev.Type == models.EventProgress && ev.Payload.Processed%250 == 0 {
			log.Info().Int("processed", ev.Payload.Processed).Int("total", ev.Payload.Total).Msg("replaying")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("recalculation failed")
	}
	log.Info().
		Int("players_updated", result.PlayersUpdated).
		Int("matches_processed", result.MatchesProcessed).
		Msg("recalculation committed")

	if err := leaderboard.SyncRedisFromDatabase(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to populate Redis leaderboard")
	}

	top, err := leaderboard.GetLeaderboard(ctx, 0, 10)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read leaderboard")
	}
	for _, e := range top.Data {
		log.Info().Int("rank", e.Rank).Str("name", e.Name).Int("rating", e.Rating).Msg("top player")
	}
	log.Info().Int64("ranked", top.Total).Msg("seeder finished")
}

func seedPlayers(ctx context.Context, engine *service.Engine) ([]*models.Player, error) {
	players := make([]*models.Player, 0, TotalPlayers)
	for i := 1; i <= TotalPlayers; i++ {
		req := models.CreatePlayerRequest{Name: fmt.Sprintf("%s%d", PlayerPrefix, i)}
		// a few veterans carry a manual baseline
		if i%10 == 0 {
			initial := 400
			req.InitialRating = &initial
		}
		p, err := engine.CreatePlayer(ctx, req)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	log.Info().Int("players", len(players)).Msg("players created")
	return players, nil
}

// seedTournaments creates a normal league and a division cup with two brackets
func seedTournaments(ctx context.Context, engine *service.Engine, players []*models.Player) (*models.Tournament, *models.Tournament, error) {
	league, err := engine.CreateTournament(ctx, models.CreateTournamentRequest{Name: "Clan League", Type: "normal"})
	if err != nil {
		return nil, nil, err
	}
	cup, err := engine.CreateTournament(ctx, models.CreateTournamentRequest{Name: "Clan Cup", Type: "division"})
	if err != nil {
		return nil, nil, err
	}

	upper, err := engine.CreateDivision(ctx, cup.ID, models.CreateDivisionRequest{Name: "Upper", StartingRating: 500})
	if err != nil {
		return nil, nil, err
	}
	lower, err := engine.CreateDivision(ctx, cup.ID, models.CreateDivisionRequest{Name: "Lower", StartingRating: 250})
	if err != nil {
		return nil, nil, err
	}

	for i, p := range players {
		div := lower
		if i < len(players)/2 {
			div = upper
		}
		if _, err := engine.AssignDivision(ctx, div.ID, models.AssignDivisionRequest{PlayerID: p.ID}); err != nil {
			return nil, nil, err
		}
	}
	return league, cup, nil
}

// seedMatches imports random results in atomic batches with shuffled timestamps
func seedMatches(ctx context.Context, engine *service.Engine, rng *rand.Rand, t *models.Tournament, players []*models.Player, start time.Time) error {
	reqs := make([]models.RecordMatchRequest, 0, MatchesPerEvent)
	for i := 0; i < MatchesPerEvent; i++ {
		p1 := players[rng.IntN(len(players))]
		playedAt := start.Add(time.Duration(rng.IntN(180*24)) * time.Hour)

		req := models.RecordMatchRequest{
			TournamentID:  t.ID,
			Player1ID:     p1.ID,
			Goals1:        rng.IntN(5),
			Goals2:        rng.IntN(5),
			Player1Absent: rng.Float64() < AbsenceProbability,
			Player2Absent: rng.Float64() < AbsenceProbability,
			PlayedAt:      &playedAt,
		}

		if rng.Float64() < GuestProbability {
			req.GuestName = fmt.Sprintf("guest_%d", rng.IntN(1000))
		} else {
			p2 := players[rng.IntN(len(players))]
			for p2.ID == p1.ID {
				p2 = players[rng.IntN(len(players))]
			}
			id := p2.ID
			req.Player2ID = &id
		}
		if req.Player1Absent || req.Player2Absent {
			req.Goals1, req.Goals2 = 0, 0
		}
		reqs = append(reqs, req)
	}

	started := time.Now()
	for i := 0; i < len(reqs); i += BatchSize {
		end := min(i+BatchSize, len(reqs))
		if _, err := engine.RecordMatches(ctx, models.BulkRecordRequest{Matches: reqs[i:end]}); err != nil {
			return err
		}
	}

	duration := time.Since(started)
	log.Info().
		Str("tournament", t.Name).
		Int("matches", len(reqs)).
		Dur("took", duration).
		Float64("per_sec", float64(len(reqs))/duration.Seconds()).
		Msg("matches imported")
	return nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
