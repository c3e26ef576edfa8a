package service

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"clanelo/internal/lock"
	"clanelo/internal/models"
	"clanelo/internal/rating"
	"clanelo/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func assertEq[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func uptr(v uint) *uint { return &v }
func iptr(v int) *int { return &v }

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func at(hours int) *time.Time {
	ts := t0.Add(time.Duration(hours) * time.Hour)
	return &ts
}

func newTestLedger(t *testing.T) *repository.LedgerRepository {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	repo := repository.NewLedgerRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// newTestEngine uses a tiny batch size so replays flush several batches
func newTestEngine(t *testing.T, auto bool) (*Engine, *repository.LedgerRepository) {
	t.Helper()
	repo := newTestLedger(t)
	e := NewEngine(repo, lock.NewLocal(time.Second), nil, Options{AutoRecalculate: auto, BatchSize: 2})
	return e, repo
}

func mustPlayer(t *testing.T, e *Engine, name string, initial *int) *models.Player {
	t.Helper()
	p, err := e.CreatePlayer(context.Background(), models.CreatePlayerRequest{Name: name, InitialRating: initial})
	if err != nil {
		t.Fatalf("create player %s: %v", name, err)
	}
	return p
}

func mustTournament(t *testing.T, e *Engine, name string, typ models.TournamentType) *models.Tournament {
	t.Helper()
	tr, err := e.CreateTournament(context.Background(), models.CreateTournamentRequest{Name: name, Type: string(typ)})
	if err != nil {
		t.Fatalf("create tournament %s: %v", name, err)
	}
	return tr
}

type played struct {
	tournament *models.Tournament
	p1, p2     *models.Player
	g1, g2     int
	a1, a2     bool
	at         *time.Time
}

func (m played) request() models.RecordMatchRequest {
	req := models.RecordMatchRequest{
		TournamentID:  m.tournament.ID,
		Player1ID:     m.p1.ID,
		Goals1:        m.g1,
		Goals2:        m.g2,
		Player1Absent: m.a1,
		Player2Absent: m.a2,
		PlayedAt:      m.at,
	}
	if m.p2 != nil {
		req.Player2ID = uptr(m.p2.ID)
	} else {
		req.GuestName = "guest"
	}
	return req
}

func mustRecord(t *testing.T, e *Engine, m played) *models.Match {
	t.Helper()
	out, err := e.RecordMatch(context.Background(), m.request())
	if err != nil {
		t.Fatalf("record match: %v", err)
	}
	return out
}

func mustGetPlayer(t *testing.T, repo repository.Ledger, id uint) *models.Player {
	t.Helper()
	p, err := repo.GetPlayer(context.Background(), id)
	if err != nil {
		t.Fatalf("get player %d: %v", id, err)
	}
	return p
}

func mustStats(t *testing.T, repo repository.Ledger, playerID, tournamentID uint) *models.PlayerTournamentStats {
	t.Helper()
	s, err := repo.GetTournamentStats(context.Background(), playerID, tournamentID)
	if err != nil {
		t.Fatal(err)
	}
	if s == nil {
		t.Fatalf("no stats for player %d in tournament %d", playerID, tournamentID)
	}
	return s
}

// ledgerState is the rating-relevant content of the store, free of ids
// and timestamps that legitimately change on rewrite
type ledgerState struct {
	Matches []matchView
	Players []playerView
	Stats   []statsView
}

type matchView struct {
	ID                               uint
	Before1, After1, Before2, After2 int
	IsDraw, IsWalkover, IsNullMatch  bool
	Winner                           uint
}

type playerView struct {
	ID     uint
	Rating int // -1 when unrated
	rating.Counters
}

type statsView struct {
	PlayerID, TournamentID uint
	Rating                 int
	rating.Counters
}

func snapshot(t *testing.T, repo repository.Ledger) ledgerState {
	t.Helper()
	ctx := context.Background()

	var st ledgerState
	matches, err := repo.ListMatches(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		v := matchView{
			ID: m.ID, Before1: m.RatingBefore1, After1: m.RatingAfter1, Before2: m.RatingBefore2, After2: m.RatingAfter2,
			IsDraw: m.IsDraw, IsWalkover: m.IsWalkover, IsNullMatch: m.IsNullMatch,
		}
		if m.WinnerID != nil {
			v.Winner = *m.WinnerID
		}
		st.Matches = append(st.Matches, v)
	}

	players, err := repo.ListPlayers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range players {
		v := playerView{ID: p.ID, Rating: -1, Counters: p.Counters}
		if p.Rating != nil {
			v.Rating = *p.Rating
		}
		st.Players = append(st.Players, v)

		stats, err := repo.ListPlayerStats(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		for _, s := range stats {
			st.Stats = append(st.Stats, statsView{PlayerID: s.PlayerID, TournamentID: s.TournamentID, Rating: s.Rating, Counters: s.Counters})
		}
	}
	return st
}

func assertSameState(t *testing.T, what string, got, want ledgerState) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s: state changed\n got: %+v\nwant: %+v", what, got, want)
	}
}
