package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRepository(client), mr
}

func TestComputeCompositeScore(t *testing.T) {
	earlier := ComputeCompositeScore(500, 1_700_000_000)
	later := ComputeCompositeScore(500, 1_800_000_000)

	if earlier <= later {
		t.Errorf("earlier arrival %f should outrank later %f", earlier, later)
	}
	if ExtractBaseScore(earlier) != 500 || ExtractBaseScore(later) != 500 {
		t.Errorf("base scores = %d, %d; want 500", ExtractBaseScore(earlier), ExtractBaseScore(later))
	}
	if ExtractBaseScore(ComputeCompositeScore(501, 1_700_000_000)) != 501 {
		t.Error("fraction leaked into the integer rating")
	}
}

func TestUpdateAndRemoveRating(t *testing.T) {
	repo, _ := newTestRedis(t)
	ctx := context.Background()

	if err := repo.UpdateRating(ctx, "alice", 420); err != nil {
		t.Fatal(err)
	}
	r, err := repo.GetRating(ctx, "alice")
	if err != nil || r != 420 {
		t.Fatalf("rating = %d, err = %v; want 420", r, err)
	}
	v, err := repo.GetLeaderboardVersion(ctx)
	if err != nil || v != 1 {
		t.Fatalf("version = %d, err = %v; want 1", v, err)
	}

	if err := repo.RemovePlayer(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetRating(ctx, "alice"); !errors.Is(err, ErrPlayerNotRanked) {
		t.Fatalf("err = %v, want ErrPlayerNotRanked", err)
	}
	total, err := repo.GetTotalPlayers(ctx)
	if err != nil || total != 0 {
		t.Fatalf("total = %d, err = %v; want 0", total, err)
	}
}

func TestReplaceAll(t *testing.T) {
	repo, _ := newTestRedis(t)
	ctx := context.Background()

	if err := repo.UpdateRating(ctx, "stale", 999); err != nil {
		t.Fatal(err)
	}
	if err := repo.ReplaceAll(ctx, map[string]int{"alice": 400, "bob": 350, "carol": 350}); err != nil {
		t.Fatal(err)
	}

	total, err := repo.GetTotalPlayers(ctx)
	if err != nil || total != 3 {
		t.Fatalf("total = %d, err = %v; want 3", total, err)
	}
	if _, err := repo.GetRating(ctx, "stale"); !errors.Is(err, ErrPlayerNotRanked) {
		t.Errorf("stale entry survived: err = %v", err)
	}

	top, err := repo.GetTopPlayers(ctx, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 || top[0].Member != "alice" || top[0].Score != 400 {
		t.Errorf("top = %+v, want alice at 400", top)
	}

	ratings, err := repo.GetRatingBatch(ctx, []string{"bob", "carol", "nobody"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ratings) != 2 || ratings["bob"] != 350 || ratings["carol"] != 350 {
		t.Errorf("ratings = %v", ratings)
	}

	higher, err := repo.CountHigherRatings(ctx, 350)
	if err != nil || higher != 1 {
		t.Errorf("higher than 350 = %d, err = %v; want 1", higher, err)
	}
}

func TestReplaceAll_Empty(t *testing.T) {
	repo, mr := newTestRedis(t)
	ctx := context.Background()

	if err := repo.UpdateRating(ctx, "alice", 400); err != nil {
		t.Fatal(err)
	}
	if err := repo.ReplaceAll(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(LeaderboardKey) || mr.Exists(RatingsKey) {
		t.Error("projection not cleared")
	}
}
