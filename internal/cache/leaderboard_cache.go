package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache mirrors each room's live progress into a Redis ZSET so
// the REST leaderboard endpoint can serve rankings without touching the
// room state. It holds live state only; entries are removed with their
// players and the key is deleted when the room is reaped.
type LeaderboardCache interface {
	UpdateScore(ctx context.Context, roomID, sessionID string, chars int) error
	Remove(ctx context.Context, roomID, sessionID string) error
	Delete(ctx context.Context, roomID string) error
	GetTop(ctx context.Context, roomID string, limit int) ([]LeaderboardEntry, error)
}

// LeaderboardEntry is a single leaderboard row.
type LeaderboardEntry struct {
	SessionID string `json:"sessionId"`
	Chars     int    `json:"chars"`
	Rank      int    `json:"rank"`
}

type leaderboardCache struct {
	client *redis.Client
}

// NewLeaderboardCache creates a Redis-backed leaderboard cache.
func NewLeaderboardCache(client *redis.Client) LeaderboardCache {
	return &leaderboardCache{client: client}
}

func (c *leaderboardCache) key(roomID string) string {
	return fmt.Sprintf("room:%s:lb", roomID)
}

func (c *leaderboardCache) UpdateScore(ctx context.Context, roomID, sessionID string, chars int) error {
	return c.client.ZAdd(ctx, c.key(roomID), redis.Z{
		Score:  float64(chars),
		Member: sessionID,
	}).Err()
}

func (c *leaderboardCache) Remove(ctx context.Context, roomID, sessionID string) error {
	return c.client.ZRem(ctx, c.key(roomID), sessionID).Err()
}

func (c *leaderboardCache) Delete(ctx context.Context, roomID string) error {
	return c.client.Del(ctx, c.key(roomID)).Err()
}

func (c *leaderboardCache) GetTop(ctx context.Context, roomID string, limit int) ([]LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(roomID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(results))
	for i, z := range results {
		entries[i] = LeaderboardEntry{
			SessionID: z.Member.(string),
			Chars:     int(z.Score),
			Rank:      i + 1,
		}
	}
	return entries, nil
}
