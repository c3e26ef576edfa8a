package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"clanelo/internal/models"
	"clanelo/internal/rating"
)

// seedLedger records n random entries across two tournaments with shuffled
// timestamps, guests and absences
func seedLedger(t *testing.T, e *Engine, n int, chronological bool) []*models.Tournament {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 11))

	tournaments := []*models.Tournament{
		mustTournament(t, e, "League", models.TournamentNormal),
		mustTournament(t, e, "Cup", models.TournamentDivision),
	}
	div, err := e.CreateDivision(context.Background(), tournaments[1].ID, models.CreateDivisionRequest{Name: "Top", StartingRating: 450})
	if err != nil {
		t.Fatal(err)
	}

	var players []*models.Player
	for i, name := range []string{"ann", "ben", "cat", "dan", "eve", "fay"} {
		var initial *int
		if i == 0 {
			initial = iptr(600)
		}
		p := mustPlayer(t, e, name, initial)
		players = append(players, p)
		if i%2 == 0 {
			if _, err := e.AssignDivision(context.Background(), div.ID, models.AssignDivisionRequest{PlayerID: p.ID}); err != nil {
				t.Fatal(err)
			}
		}
	}

	for i := 0; i < n; i++ {
		hour := i
		if !chronological {
			hour = rng.IntN(n * 2)
		}
		m := played{
			tournament: tournaments[rng.IntN(len(tournaments))],
			p1:         players[rng.IntN(len(players))],
			g1:         rng.IntN(5),
			g2:         rng.IntN(5),
			a1:         rng.IntN(12) == 0,
			a2:         rng.IntN(12) == 0,
			at:         at(hour),
		}
		if rng.IntN(8) > 0 {
			m.p2 = players[rng.IntN(len(players))]
			for m.p2.ID == m.p1.ID {
				m.p2 = players[rng.IntN(len(players))]
			}
		}
		mustRecord(t, e, m)
	}
	return tournaments
}

func TestRecalculate_Idempotent(t *testing.T) {
	e, repo := newTestEngine(t, false)
	seedLedger(t, e, 40, false)
	ctx := context.Background()

	if _, err := e.Recalculate(ctx, Scope{}, nil); err != nil {
		t.Fatal(err)
	}
	first := snapshot(t, repo)

	if _, err := e.Recalculate(ctx, Scope{}, nil); err != nil {
		t.Fatal(err)
	}
	assertSameState(t, "second recalculation", snapshot(t, repo), first)
}

func TestRecalculate_MatchesChronologicalRecording(t *testing.T) {
	e, repo := newTestEngine(t, true)
	seedLedger(t, e, 40, true)
	recorded := snapshot(t, repo)

	if _, err := e.Recalculate(context.Background(), Scope{}, nil); err != nil {
		t.Fatal(err)
	}
	assertSameState(t, "recalculation", snapshot(t, repo), recorded)
}

func TestRecalculate_SnapshotsChain(t *testing.T) {
	e, repo := newTestEngine(t, false)
	seedLedger(t, e, 50, false)
	ctx := context.Background()

	if _, err := e.Recalculate(ctx, Scope{}, nil); err != nil {
		t.Fatal(err)
	}
	matches, err := repo.ListMatches(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}

	last := make(map[rating.ScopeKey]int)
	check := func(m models.Match, playerID uint, before, after int) {
		k := rating.ScopeKey{PlayerID: playerID, TournamentID: m.TournamentID}
		if prev, ok := last[k]; ok && prev != before {
			t.Errorf("match %d: player %d before = %d, previous after = %d", m.ID, playerID, before, prev)
		}
		last[k] = after
	}

	for _, m := range matches {
		o := rating.Evaluate(m.RatingBefore1, m.RatingBefore2, m.Facts())
		if o.After1 != m.RatingAfter1 || o.After2 != m.RatingAfter2 {
			t.Errorf("match %d: stored after %d/%d, evaluated %d/%d", m.ID, m.RatingAfter1, m.RatingAfter2, o.After1, o.After2)
		}
		if m.Player2ID == nil && m.RatingBefore2 != rating.DefaultRating {
			t.Errorf("match %d: guest before = %d", m.ID, m.RatingBefore2)
		}
		check(m, m.Player1ID, m.RatingBefore1, m.RatingAfter1)
		if m.Player2ID != nil {
			check(m, *m.Player2ID, m.RatingBefore2, m.RatingAfter2)
		}
	}

	// the final scoped rating is the last snapshot of each scope
	for k, after := range last {
		assertEq(t, "scoped rating", mustStats(t, repo, k.PlayerID, k.TournamentID).Rating, after)
	}
}

func TestRecalculate_ProgressEvents(t *testing.T) {
	e, _ := newTestEngine(t, true)
	league := mustTournament(t, e, "League", models.TournamentNormal)
	a := mustPlayer(t, e, "alice", nil)
	b := mustPlayer(t, e, "bob", nil)
	for i := 0; i < 3; i++ {
		mustRecord(t, e, played{tournament: league, p1: a, p2: b, g1: i, at: at(i)})
	}

	var events []models.ProgressEvent
	result, err := e.Recalculate(context.Background(), Scope{TournamentID: &league.ID}, func(ev models.ProgressEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatal(err)
	}
	assertEq(t, "matches processed", result.MatchesProcessed, 3)
	assertEq(t, "players updated", result.PlayersUpdated, 2)

	wantTypes := []models.EventType{models.EventStart, models.EventProgress, models.EventProgress, models.EventProgress, models.EventComplete}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		assertEq(t, "event type", events[i].Type, want)
	}
	for i := 1; i <= 3; i++ {
		assertEq(t, "processed", events[i].Payload.Processed, i)
		assertEq(t, "total", events[i].Payload.Total, 3)
	}
	assertEq(t, "complete players", events[4].Payload.PlayersUpdated, 2)
}

func TestRecalculate_CancelRollsBack(t *testing.T) {
	e, repo := newTestEngine(t, false)
	seedLedger(t, e, 20, false)
	before := snapshot(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var last models.ProgressEvent
	_, err := e.Recalculate(ctx, Scope{}, func(ev models.ProgressEvent) {
		last = ev
		if ev.Type == models.EventProgress && ev.Payload.Processed == 5 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	assertEq(t, "last event", last.Type, models.EventError)
	assertSameState(t, "cancelled recalculation", snapshot(t, repo), before)
}

func TestRecalculate_TournamentScope(t *testing.T) {
	e, repo := newTestEngine(t, false)
	ctx := context.Background()
	league := mustTournament(t, e, "League", models.TournamentNormal)
	friendly := mustTournament(t, e, "Friendlies", models.TournamentNormal)
	a := mustPlayer(t, e, "alice", nil)
	b := mustPlayer(t, e, "bob", nil)
	c := mustPlayer(t, e, "carol", nil)

	// backdated entries leave both tournaments stale
	mustRecord(t, e, played{tournament: league, p1: a, p2: b, g1: 3, at: at(5)})
	mustRecord(t, e, played{tournament: league, p1: b, p2: a, g1: 2, at: at(1)})
	mustRecord(t, e, played{tournament: friendly, p1: c, p2: a, g1: 1, at: at(6)})
	mustRecord(t, e, played{tournament: friendly, p1: a, p2: c, g1: 4, at: at(2)})

	staleFriendly, err := repo.ListMatches(ctx, &friendly.ID)
	if err != nil {
		t.Fatal(err)
	}
	staleCarol := mustStats(t, repo, c.ID, friendly.ID)

	result, err := e.Recalculate(ctx, Scope{TournamentID: &league.ID}, nil)
	if err != nil {
		t.Fatal(err)
	}
	assertEq(t, "players updated", result.PlayersUpdated, 2)

	league1, err := repo.ListMatches(ctx, &league.ID)
	if err != nil {
		t.Fatal(err)
	}
	assertEq(t, "league first before", league1[0].RatingBefore1, 300)
	assertEq(t, "league second before", league1[1].RatingBefore2, league1[0].RatingAfter1)

	friendly1, err := repo.ListMatches(ctx, &friendly.ID)
	if err != nil {
		t.Fatal(err)
	}
	for i := range friendly1 {
		assertEq(t, "friendly before1", friendly1[i].RatingBefore1, staleFriendly[i].RatingBefore1)
		assertEq(t, "friendly after1", friendly1[i].RatingAfter1, staleFriendly[i].RatingAfter1)
	}
	assertEq(t, "carol untouched", mustStats(t, repo, c.ID, friendly.ID).Rating, staleCarol.Rating)
}

func TestRecalculate_UnknownTournament(t *testing.T) {
	e, _ := newTestEngine(t, true)
	id := uint(9)

	var events []models.ProgressEvent
	_, err := e.Recalculate(context.Background(), Scope{TournamentID: &id}, func(ev models.ProgressEvent) {
		events = append(events, ev)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(events) != 1 || events[0].Type != models.EventError {
		t.Errorf("events = %+v, want a single error event", events)
	}
}

func TestRecalculate_GlobalCarriesForwardAcrossTournaments(t *testing.T) {
	e, repo := newTestEngine(t, false)
	ctx := context.Background()
	league := mustTournament(t, e, "League", models.TournamentNormal)
	friendly := mustTournament(t, e, "Friendlies", models.TournamentNormal)
	a := mustPlayer(t, e, "alice", iptr(990))
	b := mustPlayer(t, e, "bob", nil)

	mustRecord(t, e, played{tournament: league, p1: a, p2: b, g1: 4, at: at(1)})
	mustRecord(t, e, played{tournament: friendly, p1: a, p2: b, g1: 4, at: at(2)})

	if _, err := e.Recalculate(ctx, Scope{}, nil); err != nil {
		t.Fatal(err)
	}
	matches, err := repo.ListMatches(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}

	// fold the stored effective deltas from the manual baseline, clamping each step
	want := 990
	for _, m := range matches {
		want = rating.ApplyDelta(want, m.RatingAfter1-m.RatingBefore1)
	}
	assertEq(t, "alice global", *mustGetPlayer(t, repo, a.ID).Rating, want)
	assertEq(t, "alice played", mustGetPlayer(t, repo, a.ID).MatchesPlayed, 2)
}
