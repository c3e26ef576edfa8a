package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// LeaderboardKey is the Redis sorted set key for the global rating leaderboard
	LeaderboardKey = "clanelo:leaderboard"

	// RatingsKey is the Redis hash of player name to plain rating
	RatingsKey = "clanelo:ratings"

	// VersionKey tracks the leaderboard version for change detection
	VersionKey = "clanelo:version"

	// TimestampDivisor keeps the tie-break fraction of a composite score below 1
	TimestampDivisor = 10_000_000_000
)

// ErrPlayerNotRanked is returned when a player has no rating in the projection
var ErrPlayerNotRanked = errors.New("player not ranked")

// RedisRepository is the read-side projection of global ratings
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
	}
}

// ComputeCompositeScore calculates a composite score for consistent tie-breaking.
// Formula: rating + (1 - unixSeconds/10^10), so whoever reached a rating
// earlier sorts above a later arrival at the same rating.
func ComputeCompositeScore(rating int, timestamp int64) float64 {
	return float64(rating) + (1.0 - float64(timestamp)/TimestampDivisor)
}

// ExtractBaseScore extracts the integer rating from a composite score
func ExtractBaseScore(compositeScore float64) int {
	return int(compositeScore)
}

// UpdateRating sets a player's rating in the projection and bumps the version
func (r *RedisRepository) UpdateRating(ctx context.Context, name string, rating int) error {
	compositeScore := ComputeCompositeScore(rating, time.Now().Unix())

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, LeaderboardKey, redis.Z{
		Score:  compositeScore,
		Member: name,
	})
	pipe.HSet(ctx, RatingsKey, name, rating)
	pipe.Incr(ctx, VersionKey)

	_, err := pipe.Exec(ctx)
	return err
}

// RemovePlayer drops an unrated player from the projection
func (r *RedisRepository) RemovePlayer(ctx context.Context, name string) error {
	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, LeaderboardKey, name)
	pipe.HDel(ctx, RatingsKey, name)
	pipe.Incr(ctx, VersionKey)

	_, err := pipe.Exec(ctx)
	return err
}

// ReplaceAll rebuilds the whole projection atomically
func (r *RedisRepository) ReplaceAll(ctx context.Context, ratings map[string]int) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, LeaderboardKey, RatingsKey)

	timestamp := time.Now().Unix()
	for name, rating := range ratings {
		pipe.ZAdd(ctx, LeaderboardKey, redis.Z{
			Score:  ComputeCompositeScore(rating, timestamp),
			Member: name,
		})
		pipe.HSet(ctx, RatingsKey, name, rating)
	}

	// Version bumps once for the entire rebuild
	pipe.Incr(ctx, VersionKey)

	_, err := pipe.Exec(ctx)
	return err
}

// GetRating retrieves a player's rating from the ratings hash
func (r *RedisRepository) GetRating(ctx context.Context, name string) (int, error) {
	s, err := r.client.HGet(ctx, RatingsKey, name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("%w: %s", ErrPlayerNotRanked, name)
		}
		return 0, err
	}

	rating, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid rating format: %w", err)
	}
	return rating, nil
}

// GetRatingBatch retrieves ratings for multiple players using HMGET
func (r *RedisRepository) GetRatingBatch(ctx context.Context, names []string) (map[string]int, error) {
	if len(names) == 0 {
		return make(map[string]int), nil
	}

	results, err := r.client.HMGet(ctx, RatingsKey, names...).Result()
	if err != nil {
		return nil, err
	}

	ratings := make(map[string]int, len(names))
	for i, result := range results {
		s, ok := result.(string)
		if !ok {
			continue
		}
		rating, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		ratings[names[i]] = rating
	}
	return ratings, nil
}

// CountHigherRatings counts players whose plain rating is above rating
func (r *RedisRepository) CountHigherRatings(ctx context.Context, rating int) (int64, error) {
	return r.client.ZCount(ctx, LeaderboardKey, strconv.Itoa(rating+1), "+inf").Result()
}

// GetLeaderboardVersion returns the current version number
func (r *RedisRepository) GetLeaderboardVersion(ctx context.Context) (int64, error) {
	version, err := r.client.Get(ctx, VersionKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

// GetTopPlayers returns a page of players, highest rating first
func (r *RedisRepository) GetTopPlayers(ctx context.Context, offset, limit int) ([]redis.Z, error) {
	start := int64(offset)
	stop := int64(offset + limit - 1)

	results, err := r.client.ZRevRangeWithScores(ctx, LeaderboardKey, start, stop).Result()
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Score = float64(ExtractBaseScore(results[i].Score))
	}
	return results, nil
}

// GetTotalPlayers returns the number of ranked players
func (r *RedisRepository) GetTotalPlayers(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, LeaderboardKey).Result()
}

// Ping checks if Redis is reachable
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
