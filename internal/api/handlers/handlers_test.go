package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clanelo/internal/config"
	"clanelo/internal/jobs"
	"clanelo/internal/lock"
	"clanelo/internal/models"
	"clanelo/internal/repository"
	"clanelo/internal/service"
	"clanelo/internal/websocket"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type testAPI struct {
	app    *fiber.App
	ledger *repository.LedgerRepository
	locker *lock.Local
	jobs   *jobs.RecalcManager
}

func newTestAPI(t *testing.T, auto bool) *testAPI {
	t.Helper()

	db, err := repository.Open(&config.Config{Database: config.DatabaseConfig{
		Driver:       "sqlite",
		SQLitePath:   filepath.Join(t.TempDir(), "api.db"),
		MaxIdleConns: 1,
	}})
	if err != nil {
		t.Fatal(err)
	}
	ledger := repository.NewLedgerRepository(db)
	if err := ledger.AutoMigrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ledger.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	redisRepo := repository.NewRedisRepository(client)

	locker := lock.NewLocal(100 * time.Millisecond)
	engine := service.NewEngine(ledger, locker, nil, service.Options{AutoRecalculate: auto})
	leaderboard := service.NewLeaderboardService(redisRepo, ledger)
	hub := websocket.NewHub(redisRepo)
	manager := jobs.NewRecalcManager(engine, hub, leaderboard)
	t.Cleanup(manager.Stop)

	app := fiber.New()
	Register(app, Handlers{
		Matches:     NewMatchHandler(engine),
		Recalc:      NewRecalcHandler(manager),
		Leaderboard: NewLeaderboardHandler(leaderboard, hub),
		Admin:       NewAdminHandler(engine),
	})
	return &testAPI{app: app, ledger: ledger, locker: locker, jobs: manager}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, out
}

func (a *testAPI) expect(t *testing.T, method, path, body string, want int) []byte {
	t.Helper()
	status, out := a.do(t, method, path, body)
	if status != want {
		t.Fatalf("%s %s: status %d, want %d; body %s", method, path, status, want, out)
	}
	return out
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return v
}

func seed(t *testing.T, a *testAPI) {
	t.Helper()
	a.expect(t, http.MethodPost, "/api/v1/players", `{"name":"alice"}`, http.StatusCreated)
	a.expect(t, http.MethodPost, "/api/v1/players", `{"name":"bob"}`, http.StatusCreated)
	a.expect(t, http.MethodPost, "/api/v1/tournaments", `{"name":"League","type":"normal"}`, http.StatusCreated)
}

func TestMatchLifecycle(t *testing.T) {
	a := newTestAPI(t, true)
	seed(t, a)

	body := a.expect(t, http.MethodPost, "/api/v1/matches",
		`{"tournament_id":1,"player1_id":1,"player2_id":2,"goals1":2,"goals2":0,"played_at":"2026-03-01T18:00:00Z"}`,
		http.StatusCreated)
	m := decode[models.Match](t, body)
	if m.RatingAfter1 != 325 || m.RatingAfter2 != 282 {
		t.Fatalf("snapshot = %d/%d, want 325/282", m.RatingAfter1, m.RatingAfter2)
	}

	a.expect(t, http.MethodGet, "/api/v1/matches/1", "", http.StatusOK)

	body = a.expect(t, http.MethodPut, "/api/v1/matches/1", `{"goals1":0,"goals2":0}`, http.StatusOK)
	edited := decode[models.Match](t, body)
	if !edited.IsDraw {
		t.Errorf("edited match is not a draw: %+v", edited)
	}

	body = a.expect(t, http.MethodGet, "/api/v1/tournaments/1/standings", "", http.StatusOK)
	table := decode[models.StandingsResponse](t, body)
	if len(table.Standings) != 2 || table.Standings[0].Rank != 1 || table.Standings[1].Rank != 1 {
		t.Errorf("standings = %+v, want two players tied first", table.Standings)
	}

	a.expect(t, http.MethodGet, "/api/v1/players/1", "", http.StatusOK)
	a.expect(t, http.MethodDelete, "/api/v1/matches/1", "", http.StatusNoContent)
	a.expect(t, http.MethodGet, "/api/v1/matches/1", "", http.StatusNotFound)
}

func TestBulkRecord(t *testing.T) {
	a := newTestAPI(t, true)
	seed(t, a)

	body := a.expect(t, http.MethodPost, "/api/v1/matches/bulk", `{"matches":[
		{"tournament_id":1,"player1_id":1,"player2_id":2,"goals1":1,"played_at":"2026-03-01T18:00:00Z"},
		{"tournament_id":1,"player1_id":2,"guest_name":"visitor","goals1":3,"played_at":"2026-03-02T18:00:00Z"}
	]}`, http.StatusCreated)
	got := decode[struct {
		Recorded int `json:"recorded"`
	}](t, body)
	if got.Recorded != 2 {
		t.Errorf("recorded = %d, want 2", got.Recorded)
	}

	a.expect(t, http.MethodPost, "/api/v1/matches/bulk", `{"matches":[]}`, http.StatusBadRequest)
}

func TestErrorMapping(t *testing.T) {
	a := newTestAPI(t, true)
	seed(t, a)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/api/v1/matches", `{"tournament_id":`, http.StatusBadRequest},
		{"self match", http.MethodPost, "/api/v1/matches", `{"tournament_id":1,"player1_id":1,"player2_id":1}`, http.StatusBadRequest},
		{"no opponent", http.MethodPost, "/api/v1/matches", `{"tournament_id":1,"player1_id":1}`, http.StatusBadRequest},
		{"unknown player", http.MethodPost, "/api/v1/matches", `{"tournament_id":1,"player1_id":1,"player2_id":9}`, http.StatusNotFound},
		{"unknown tournament", http.MethodPost, "/api/v1/matches", `{"tournament_id":9,"player1_id":1,"guest_name":"g"}`, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/v1/matches/abc", "", http.StatusBadRequest},
		{"unknown match", http.MethodDelete, "/api/v1/matches/77", "", http.StatusNotFound},
		{"duplicate player", http.MethodPost, "/api/v1/players", `{"name":"alice"}`, http.StatusBadRequest},
		{"bad tournament type", http.MethodPost, "/api/v1/tournaments", `{"name":"Cup","type":"knockout"}`, http.StatusBadRequest},
		{"division on normal tournament", http.MethodPost, "/api/v1/tournaments/1/divisions", `{"name":"Top","starting_rating":500}`, http.StatusBadRequest},
		{"unknown division", http.MethodPatch, "/api/v1/divisions/5", `{"starting_rating":500}`, http.StatusNotFound},
		{"unranked search", http.MethodGet, "/api/v1/search/alice", "", http.StatusNotFound},
		{"unknown job", http.MethodGet, "/api/v1/recalculations/nope", "", http.StatusNotFound},
		{"zero tournament scope", http.MethodPost, "/api/v1/recalculations", `{"tournament_id":0}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.expect(t, tt.method, tt.path, tt.body, tt.want)
		})
	}
}

func TestConflicts(t *testing.T) {
	a := newTestAPI(t, false)
	seed(t, a)
	a.expect(t, http.MethodPost, "/api/v1/matches",
		`{"tournament_id":1,"player1_id":1,"player2_id":2,"goals1":2}`, http.StatusCreated)

	// aggregates that cannot absorb a point reversal
	wiped := &models.PlayerTournamentStats{PlayerID: 1, TournamentID: 1, Rating: 325}
	if err := a.ledger.UpsertTournamentStats(context.Background(), wiped); err != nil {
		t.Fatal(err)
	}
	a.expect(t, http.MethodDelete, "/api/v1/matches/1", "", http.StatusConflict)

	unlock, err := a.locker.Lock(context.Background(), "clanelo:lock:engine")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()
	a.expect(t, http.MethodPut, "/api/v1/matches/1", `{"goals1":1}`, http.StatusConflict)
}

func TestRecalculationJob(t *testing.T) {
	a := newTestAPI(t, true)
	seed(t, a)
	a.expect(t, http.MethodPost, "/api/v1/matches",
		`{"tournament_id":1,"player1_id":1,"player2_id":2,"goals1":2}`, http.StatusCreated)

	body := a.expect(t, http.MethodPost, "/api/v1/recalculations", "", http.StatusAccepted)
	job := decode[jobs.Job](t, body)
	a.jobs.Wait()

	body = a.expect(t, http.MethodGet, "/api/v1/recalculations/"+job.ID, "", http.StatusOK)
	done := decode[jobs.Job](t, body)
	if done.Status != jobs.StatusCompleted || done.Result == nil || done.Result.MatchesProcessed != 1 {
		t.Fatalf("job = %+v, want completed over 1 match", done)
	}

	// the projection is rebuilt after a completed run
	body = a.expect(t, http.MethodGet, "/api/v1/search/alice", "", http.StatusOK)
	hit := decode[models.SearchResponse](t, body)
	if hit.GlobalRank != 1 || hit.Rating != 325 {
		t.Errorf("search = %+v, want rank 1 at 325", hit)
	}

	body = a.expect(t, http.MethodGet, "/api/v1/leaderboard?limit=10", "", http.StatusOK)
	board := decode[models.LeaderboardResponse](t, body)
	if board.Total != 2 {
		t.Errorf("total = %d, want 2", board.Total)
	}
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, true)
	a.expect(t, http.MethodGet, "/api/v1/health", "", http.StatusOK)
}
