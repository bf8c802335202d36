package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lucaspere/picktracker/pkg/models"
	"github.com/lucaspere/picktracker/pkg/pricefeed"
	"github.com/lucaspere/picktracker/pkg/store"
	"github.com/lucaspere/picktracker/pkg/utils"
)

// LockKey guards the cluster: at most one reconciliation run is active
// across every service instance within the lock TTL.
const LockKey = "picks:reconcile:lock"

// PickStore is the persistence surface the job needs.
type PickStore interface {
	LoadOpenPicks(ctx context.Context, since time.Time) (map[string][]*models.Pick, error)
	BulkPersist(ctx context.Context, updates []store.PickUpdate) error
	UpsertTokens(ctx context.Context, tokens []models.Token) error
}

// PriceFeed supplies live quotes and historical highs.
type PriceFeed interface {
	GetLatest(ctx context.Context, addresses []string) (map[string]pricefeed.Quote, error)
	GetHistoricalHigh(ctx context.Context, address, chain string, from, to time.Time, resolution string) (pricefeed.Candle, error)
}

// Locker is the cross-instance mutual exclusion primitive.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// Leaderboard receives best-effort standings updates for changed picks.
type Leaderboard interface {
	Update(ctx context.Context, snap models.PickSnapshot) error
}

// Config tunes one job instance.
type Config struct {
	// LockTTL bounds a stuck run; generous relative to the expected run time.
	LockTTL time.Duration
	// TrackingWindow is how far back picks stay eligible for reconciliation.
	TrackingWindow time.Duration
	// BatchSize is the number of token addresses per feed request.
	BatchSize int
	// MaxConcurrency caps the batches in flight simultaneously.
	MaxConcurrency int
	// Resolution is the candle size for baseline seeding.
	Resolution string
}

// DefaultConfig reads tunables from the environment with the production
// defaults.
func DefaultConfig() Config {
	return Config{
		LockTTL:        utils.EnvDuration("RECONCILE_LOCK_TTL", 180*time.Second),
		TrackingWindow: utils.EnvDuration("RECONCILE_TRACKING_WINDOW", 30*24*time.Hour),
		BatchSize:      utils.EnvInt("RECONCILE_BATCH_SIZE", 20),
		MaxConcurrency: utils.EnvInt("RECONCILE_MAX_CONCURRENCY", 4),
		Resolution:     utils.Env("RECONCILE_OHLCV_RESOLUTION", "15m"),
	}
}

// Job is the periodic reconciler: it loads open picks, refreshes their
// market data in bounded-concurrency batches, raises high-water marks,
// fires hit transitions and feeds the leaderboard cache. Every state
// transition is idempotent and monotone, so overlapping or repeated runs
// can duplicate work but never corrupt state.
type Job struct {
	cfg    Config
	store  PickStore
	feed   PriceFeed
	lock   Locker
	board  Leaderboard
	logger *zap.Logger

	poolOnce  sync.Once
	batchPool pond.Pool
	evalPool  pond.Pool
}

func NewJob(cfg Config, picks PickStore, feed PriceFeed, lock Locker, board Leaderboard, logger *zap.Logger) *Job {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 180 * time.Second
	}
	if cfg.TrackingWindow <= 0 {
		cfg.TrackingWindow = 30 * 24 * time.Hour
	}
	if cfg.Resolution == "" {
		cfg.Resolution = "15m"
	}
	return &Job{
		cfg:    cfg,
		store:  picks,
		feed:   feed,
		lock:   lock,
		board:  board,
		logger: logger,
	}
}

func (j *Job) pools() (pond.Pool, pond.Pool) {
	j.poolOnce.Do(func() {
		j.batchPool = pond.NewPool(j.cfg.MaxConcurrency)
		// Per-pick evaluation fans out further than batches: each batch may
		// seed several baselines over the network at once.
		j.evalPool = pond.NewPool(j.cfg.MaxConcurrency * j.cfg.BatchSize)
	})
	return j.batchPool, j.evalPool
}

// Run executes one reconciliation pass. Lock contention is a normal signal,
// not an error: another instance is already running and this tick becomes a
// no-op. On failure the lock is released early so the next tick can retry
// before the TTL would have expired.
func (j *Job) Run(ctx context.Context) error {
	log := j.logger.With(zap.String("jobId", uuid.NewString()))

	acquired, err := j.lock.Acquire(ctx, LockKey, j.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !acquired {
		log.Debug("Another instance is currently reconciling picks")
		return nil
	}

	start := time.Now()
	log.Info("Starting pick reconciliation")

	err = j.reconcile(ctx, log)

	log.Info("Finished pick reconciliation",
		zap.Duration("took", time.Since(start)),
		zap.Bool("success", err == nil))

	if err != nil {
		j.lock.Release(ctx, LockKey)
	}
	return err
}

func (j *Job) reconcile(ctx context.Context, log *zap.Logger) error {
	since := time.Now().Add(-j.cfg.TrackingWindow)
	picksByAddress, err := j.store.LoadOpenPicks(ctx, since)
	if err != nil {
		return fmt.Errorf("load open picks: %w", err)
	}
	if len(picksByAddress) == 0 {
		log.Info("No picks to reconcile")
		return nil
	}

	addresses := make([]string, 0, len(picksByAddress))
	for address := range picksByAddress {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	batches := utils.ChunkStrings(addresses, j.cfg.BatchSize)

	log.Info("Loaded picks to reconcile",
		zap.Int("tokens", len(addresses)),
		zap.Int("batches", len(batches)))

	batchPool, _ := j.pools()
	group := batchPool.NewGroupContext(ctx)

	var failed atomic.Int64
	for idx, batch := range batches {
		idx, batch := idx, batch
		group.Submit(func() {
			batchStart := time.Now()
			if err := j.processBatch(ctx, log, batch, picksByAddress); err != nil {
				failed.Add(1)
				log.Error("Batch failed, sibling batches continue",
					zap.Int("batch", idx),
					zap.Int("size", len(batch)),
					zap.Error(err))
				return
			}
			log.Debug("Finished batch",
				zap.Int("batch", idx),
				zap.Duration("took", time.Since(batchStart)))
		})
	}
	_ = group.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d batches failed", n, len(batches))
	}
	return nil
}

// processBatch reconciles every pick behind one batch of token addresses:
// one feed request for the whole batch, concurrent per-pick evaluation and
// cache writes joined before the batch's single bulk persistence call.
func (j *Job) processBatch(ctx context.Context, log *zap.Logger, addresses []string, picksByAddress map[string][]*models.Pick) error {
	quotes, err := j.feed.GetLatest(ctx, addresses)
	if err != nil {
		return fmt.Errorf("fetch quotes: %w", err)
	}

	tokens := make([]models.Token, 0, len(quotes))
	for addr, quote := range quotes {
		chain := ""
		if picks := picksByAddress[addr]; len(picks) > 0 {
			chain = picks[0].Token.Chain
		}
		tokens = append(tokens, tokenFromQuote(quote, chain))
	}
	if err := j.store.UpsertTokens(ctx, tokens); err != nil {
		// Metadata refresh is auxiliary; the hit/multiplier path continues.
		log.Warn("Token metadata upsert failed", zap.Error(err))
	}

	now := time.Now()
	_, evalPool := j.pools()
	group := evalPool.NewGroupContext(ctx)

	var (
		mu      sync.Mutex
		updates []store.PickUpdate
		changed int
	)
	for _, address := range addresses {
		quote, ok := quotes[address]
		if !ok {
			continue
		}
		for _, pick := range picksByAddress[address] {
			pick, quote := pick, quote
			group.Submit(func() {
				didChange, err := j.evaluatePick(ctx, pick, quote, now)
				if err != nil {
					log.Warn("Skipping pick, baseline seed failed",
						zap.Int64("pick", pick.ID),
						zap.String("token", pick.Token.Address),
						zap.Error(err))
					return
				}
				applyQuote(&pick.Token, quote)
				if !didChange {
					return
				}

				mu.Lock()
				updates = append(updates, store.PickUpdate{
					ID:               pick.ID,
					HighestMarketCap: *pick.HighestMarketCap,
					HitDate:          pick.HitDate,
				})
				changed++
				mu.Unlock()

				// Cache write for the changed pick, best-effort, inside the
				// join boundary so the batch completes as a unit.
				if pick.IsQualified() {
					if err := j.board.Update(ctx, models.SnapshotOf(pick)); err != nil {
						log.Warn("Leaderboard update failed",
							zap.Int64("pick", pick.ID),
							zap.Error(err))
					}
				}
			})
		}
	}
	_ = group.Wait()

	if len(updates) == 0 {
		return nil
	}
	if err := j.store.BulkPersist(ctx, updates); err != nil {
		return fmt.Errorf("persist %d pick updates: %w", len(updates), err)
	}
	log.Debug("Persisted batch updates", zap.Int("picks", changed))
	return nil
}

// evaluatePick applies one market reading to one pick. The first evaluation
// seeds the high-water mark from the historical intraday high since the
// call; later evaluations only compare against the latest point-in-time
// reading. Returns whether stored state changed.
func (j *Job) evaluatePick(ctx context.Context, pick *models.Pick, quote pricefeed.Quote, now time.Time) (bool, error) {
	changed := false

	if pick.HighestMarketCap == nil {
		candle, err := j.feed.GetHistoricalHigh(ctx, pick.Token.Address, pick.Token.Chain, pick.CallDate, now, j.cfg.Resolution)
		if err != nil {
			return false, err
		}
		if pick.RaiseHighestMarketCap(baselineMarketCap(candle, pick, quote)) {
			changed = true
		}
	}
	if pick.RaiseHighestMarketCap(quote.MarketCap) {
		changed = true
	}
	if pick.CheckForHit(now) {
		changed = true
	}
	return changed, nil
}
