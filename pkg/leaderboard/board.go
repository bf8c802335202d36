package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lucaspere/picktracker/pkg/models"
	"github.com/lucaspere/picktracker/pkg/redis"
)

const keyPrefix = "group:leaderboard"

// Cache is the slice of the redis client the board needs.
type Cache interface {
	AtomicPipeline(ctx context.Context, ops []redis.Op) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	HMGet(ctx context.Context, key string, fields ...string) ([]*string, error)
}

// PickSource loads a group's picks for synchronous recomputation.
type PickSource interface {
	GroupPicks(ctx context.Context, groupID int64, since time.Time) ([]*models.Pick, error)
}

// Board maintains the per-group, per-timeframe standings: a sorted set of
// pick id -> multiplier plus a parallel hash of pick id -> JSON snapshot.
// Both structures for one key expire at half the timeframe's window, so the
// cache is purely disposable; Postgres stays the system of record.
type Board struct {
	cache  Cache
	picks  PickSource
	logger *zap.Logger
}

func New(cache Cache, picks PickSource, logger *zap.Logger) *Board {
	return &Board{cache: cache, picks: picks, logger: logger}
}

// Key is the sorted-set key for a group and timeframe.
func Key(groupID int64, tf models.Timeframe) string {
	return fmt.Sprintf("%s:%d:%s", keyPrefix, groupID, tf)
}

// DataKey is the snapshot-hash key paired with Key.
func DataKey(groupID int64, tf models.Timeframe) string {
	return Key(groupID, tf) + ":data"
}

// UpdateOps builds the single atomic batch for one pick: for every timeframe
// whose window contains the call date, score + snapshot + a fresh TTL on
// both structures. Empty when the pick is outside every window.
func UpdateOps(snap models.PickSnapshot, now time.Time) ([]redis.Op, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal pick %d snapshot: %w", snap.ID, err)
	}

	member := strconv.FormatInt(snap.ID, 10)
	var ops []redis.Op
	for _, tf := range models.Timeframes() {
		if !tf.Contains(snap.CallDate, now) {
			continue
		}
		zsetKey := Key(snap.GroupID, tf)
		hashKey := DataKey(snap.GroupID, tf)
		ops = append(ops,
			redis.ZAdd(zsetKey, member, snap.HighestMultiplier),
			redis.HSet(hashKey, member, string(payload)),
			redis.Expire(zsetKey, tf.TTL()),
			redis.Expire(hashKey, tf.TTL()),
		)
	}
	return ops, nil
}

// Update pushes one pick into every matching timeframe as a single pipeline,
// so no concurrent reader sees a partially updated board.
func (b *Board) Update(ctx context.Context, snap models.PickSnapshot) error {
	ops, err := UpdateOps(snap, time.Now())
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	return b.cache.AtomicPipeline(ctx, ops)
}

// Read returns the top limit picks for a group and timeframe, best multiplier
// first. Entries whose snapshot has independently expired are dropped rather
// than surfaced as errors. forceRefresh recomputes from the store before
// reading, for callers that need freshness beyond the TTL default.
func (b *Board) Read(ctx context.Context, groupID int64, tf models.Timeframe, limit int64, forceRefresh bool) ([]models.PickSnapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	if forceRefresh {
		if err := b.Recompute(ctx, groupID, tf); err != nil {
			return nil, err
		}
	}

	ids, err := b.cache.ZRevRange(ctx, Key(groupID, tf), 0, limit-1)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard %d/%s: %w", groupID, tf, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vals, err := b.cache.HMGet(ctx, DataKey(groupID, tf), ids...)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard %d/%s snapshots: %w", groupID, tf.String(), err)
	}

	out := make([]models.PickSnapshot, 0, len(ids))
	for i, v := range vals {
		if v == nil {
			continue
		}
		var snap models.PickSnapshot
		if err := json.Unmarshal([]byte(*v), &snap); err != nil {
			b.logger.Warn("Dropping undecodable leaderboard snapshot",
				zap.Int64("group", groupID),
				zap.String("timeframe", tf.String()),
				zap.String("pick", ids[i]),
				zap.Error(err))
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Recompute rebuilds a group's board for one timeframe straight from the
// store. Members that fell out of the window simply age out with the TTL.
func (b *Board) Recompute(ctx context.Context, groupID int64, tf models.Timeframe) error {
	now := time.Now()
	picks, err := b.picks.GroupPicks(ctx, groupID, now.Add(-tf.Window()))
	if err != nil {
		return fmt.Errorf("recompute leaderboard %d/%s: %w", groupID, tf, err)
	}

	var ops []redis.Op
	zsetKey := Key(groupID, tf)
	hashKey := DataKey(groupID, tf)
	for _, pick := range picks {
		if !pick.IsQualified() {
			continue
		}
		snap := models.SnapshotOf(pick)
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal pick %d snapshot: %w", pick.ID, err)
		}
		member := strconv.FormatInt(pick.ID, 10)
		ops = append(ops,
			redis.ZAdd(zsetKey, member, snap.HighestMultiplier),
			redis.HSet(hashKey, member, string(payload)),
		)
	}
	if len(ops) == 0 {
		return nil
	}
	ops = append(ops, redis.Expire(zsetKey, tf.TTL()), redis.Expire(hashKey, tf.TTL()))
	return b.cache.AtomicPipeline(ctx, ops)
}
