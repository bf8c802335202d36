package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/lucaspere/picktracker/pkg/events"
	"github.com/lucaspere/picktracker/pkg/models"
	"github.com/lucaspere/picktracker/pkg/pricefeed"
)

// notifyLockTTL bounds one fan-out; a crashed instance frees the pick for
// redelivery quickly.
const notifyLockTTL = 10 * time.Second

// Messenger delivers one rendered HTML message to one recipient.
type Messenger interface {
	Send(ctx context.Context, recipientID int64, htmlText string) error
}

// FollowerStore resolves the notification audience of a pick owner.
type FollowerStore interface {
	FollowersOf(ctx context.Context, userID uuid.UUID) ([]models.Follower, error)
}

// PriceFeed supplies the market view and the optional risk report embedded in
// the message.
type PriceFeed interface {
	GetLatest(ctx context.Context, addresses []string) (map[string]pricefeed.Quote, error)
	GetTokenReport(ctx context.Context, address string) (*pricefeed.TokenReport, error)
}

// Locker is the cross-instance per-pick delivery guard.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// Fanout notifies every follower of a pick owner about a fresh pick. Two
// guards keep delivery at-most-once per pick: an in-process map short-circuits
// duplicate events on the same instance, and the per-pick lock excludes other
// instances. Sends run concurrently and are joined before the handler returns.
type Fanout struct {
	lock      Locker
	followers FollowerStore
	feed      PriceFeed
	messenger Messenger
	builder   MessageBuilder
	pool      pond.Pool
	inFlight  *xsync.Map[int64, struct{}]
	logger    *zap.Logger
}

func NewFanout(lock Locker, followers FollowerStore, feed PriceFeed, messenger Messenger, logger *zap.Logger) *Fanout {
	return &Fanout{
		lock:      lock,
		followers: followers,
		feed:      feed,
		messenger: messenger,
		builder:   NewMessageBuilder(),
		pool:      pond.NewPool(16),
		inFlight:  xsync.NewMap[int64, struct{}](),
		logger:    logger,
	}
}

func lockKeyFor(pickID int64) string {
	return fmt.Sprintf("picks:notify:%d", pickID)
}

// HandlePickCreated is the pick.created handler. Duplicate or contended
// events are dropped without error; a failed send to one follower never
// blocks or fails the others.
func (f *Fanout) HandlePickCreated(ctx context.Context, evt events.PickCreatedEvent) error {
	pick := evt.Pick
	log := f.logger.With(
		zap.Int64("pick", pick.ID),
		zap.String("token", pick.Token.Address))

	if _, loaded := f.inFlight.LoadOrStore(pick.ID, struct{}{}); loaded {
		log.Debug("Pick fan-out already in flight locally")
		return nil
	}
	defer f.inFlight.Delete(pick.ID)

	key := lockKeyFor(pick.ID)
	acquired, err := f.lock.Acquire(ctx, key, notifyLockTTL)
	if err != nil {
		return fmt.Errorf("acquire notify lock: %w", err)
	}
	if !acquired {
		log.Debug("Pick fan-out claimed by another instance")
		return nil
	}
	defer f.lock.Release(ctx, key)

	followers, err := f.followers.FollowersOf(ctx, pick.UserID)
	if err != nil {
		return fmt.Errorf("load followers: %w", err)
	}
	if len(followers) == 0 {
		log.Debug("Pick owner has no reachable followers")
		return nil
	}

	quotes, err := f.feed.GetLatest(ctx, []string{pick.Token.Address})
	if err != nil {
		return fmt.Errorf("fetch quote: %w", err)
	}
	quote, ok := quotes[pick.Token.Address]
	if !ok {
		return fmt.Errorf("no quote for token %s", pick.Token.Address)
	}

	report, err := f.feed.GetTokenReport(ctx, pick.Token.Address)
	if err != nil {
		// The risk section degrades to its placeholders.
		log.Warn("Token report unavailable", zap.Error(err))
		report = nil
	}

	message := f.builder.PickCreated(evt, quote, report)

	group := f.pool.NewGroupContext(ctx)
	for _, follower := range followers {
		follower := follower
		group.Submit(func() {
			if err := f.messenger.Send(ctx, follower.TelegramID, message); err != nil {
				log.Warn("Failed to notify follower",
					zap.Int64("telegramId", follower.TelegramID),
					zap.Error(err))
			}
		})
	}
	_ = group.Wait()

	log.Info("Notified followers about pick", zap.Int("followers", len(followers)))
	return nil
}
