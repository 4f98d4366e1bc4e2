package leaderboard

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

const globalKey = "leaderboard:all"

// Leaderboard keeps running point totals in redis sorted sets, one per
// department plus a global set.
type Leaderboard struct {
	rdb *redis.Client
}

type Entry struct {
	WorkerID string
	Points   int
}

func New(rdb *redis.Client) *Leaderboard {
	return &Leaderboard{rdb: rdb}
}

func keyFor(department string) string {
	department = strings.ToLower(strings.TrimSpace(department))
	if department == "" {
		return globalKey
	}
	return "leaderboard:" + department
}

func (l *Leaderboard) Add(ctx context.Context, workerID, department string, points int) error {
	if l.rdb == nil || workerID == "" || points == 0 {
		return nil
	}
	pipe := l.rdb.Pipeline()
	pipe.ZIncrBy(ctx, globalKey, float64(points), workerID)
	if department != "" {
		pipe.ZIncrBy(ctx, keyFor(department), float64(points), workerID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (l *Leaderboard) Top(ctx context.Context, department string, n int) ([]Entry, error) {
	if l.rdb == nil {
		return nil, nil
	}
	if n <= 0 || n > 100 {
		n = 10
	}
	scores, err := l.rdb.ZRevRangeWithScores(ctx, keyFor(department), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(scores))
	for _, z := range scores {
		member, _ := z.Member.(string)
		entries = append(entries, Entry{WorkerID: member, Points: int(z.Score)})
	}
	return entries, nil
}

// Rank returns the 1-based position of a worker, or 0 when unranked.
func (l *Leaderboard) Rank(ctx context.Context, department, workerID string) (int, error) {
	if l.rdb == nil {
		return 0, nil
	}
	rank, err := l.rdb.ZRevRank(ctx, keyFor(department), workerID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(rank) + 1, nil
}
