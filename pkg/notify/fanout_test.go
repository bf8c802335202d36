package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lucaspere/picktracker/pkg/events"
	"github.com/lucaspere/picktracker/pkg/models"
	"github.com/lucaspere/picktracker/pkg/pricefeed"
)

type fakeLock struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string
	released []string
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: map[string]bool{}}
}

func (f *fakeLock) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	f.acquired = append(f.acquired, key)
	return true, nil
}

func (f *fakeLock) Release(_ context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	f.released = append(f.released, key)
}

type fakeFollowers struct {
	followers []models.Follower
	err       error
	calls     int
}

func (f *fakeFollowers) FollowersOf(context.Context, uuid.UUID) ([]models.Follower, error) {
	f.calls++
	return f.followers, f.err
}

type fakeFeed struct {
	quote     pricefeed.Quote
	report    *pricefeed.TokenReport
	reportErr error
}

func (f *fakeFeed) GetLatest(_ context.Context, addresses []string) (map[string]pricefeed.Quote, error) {
	out := map[string]pricefeed.Quote{}
	for _, addr := range addresses {
		q := f.quote
		q.Address = addr
		out[addr] = q
	}
	return out, nil
}

func (f *fakeFeed) GetTokenReport(context.Context, string) (*pricefeed.TokenReport, error) {
	return f.report, f.reportErr
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    map[int64]string
	failFor map[int64]error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{sent: map[int64]string{}, failFor: map[int64]error{}}
}

func (f *fakeMessenger) Send(_ context.Context, recipientID int64, htmlText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[recipientID]; ok {
		return err
	}
	f.sent[recipientID] = htmlText
	return nil
}

func pickCreatedEvent() events.PickCreatedEvent {
	return events.PickCreatedEvent{
		EventDate: time.Now(),
		GroupName: "degens",
		Pick: models.Pick{
			ID:              42,
			Token:           models.Token{Address: "So11111111111111111111111111111111111111112", Symbol: "SOL", Chain: "solana"},
			UserID:          uuid.New(),
			Username:        "alice",
			GroupID:         7,
			MarketCapAtCall: decimal.NewFromInt(150_000),
			CallDate:        time.Now().Add(-time.Minute),
		},
	}
}

func solQuote() pricefeed.Quote {
	liq := decimal.NewFromInt(2_000_000)
	vol := decimal.NewFromInt(5_000_000)
	holders := int64(12_000)
	return pricefeed.Quote{
		Symbol:      "SOL",
		Price:       decimal.RequireFromString("0.000012"),
		MarketCap:   decimal.NewFromInt(300_000),
		Liquidity:   &liq,
		Volume24h:   &vol,
		HolderCount: &holders,
	}
}

func TestFanoutNotifiesEveryFollower(t *testing.T) {
	followers := &fakeFollowers{followers: []models.Follower{
		{Username: "bob", TelegramID: 100},
		{Username: "carol", TelegramID: 200},
	}}
	messenger := newFakeMessenger()
	lock := newFakeLock()

	f := NewFanout(lock, followers, &fakeFeed{quote: solQuote()}, messenger, zap.NewNop())
	require.NoError(t, f.HandlePickCreated(context.Background(), pickCreatedEvent()))

	assert.Len(t, messenger.sent, 2)
	assert.Contains(t, messenger.sent[100], "alice just made a pick!")
	assert.Equal(t, []string{"picks:notify:42"}, lock.acquired)
	assert.Equal(t, []string{"picks:notify:42"}, lock.released)
}

func TestFanoutContendedLockIsNoop(t *testing.T) {
	lock := newFakeLock()
	lock.held["picks:notify:42"] = true
	followers := &fakeFollowers{followers: []models.Follower{{TelegramID: 100}}}
	messenger := newFakeMessenger()

	f := NewFanout(lock, followers, &fakeFeed{quote: solQuote()}, messenger, zap.NewNop())
	require.NoError(t, f.HandlePickCreated(context.Background(), pickCreatedEvent()))

	assert.Empty(t, messenger.sent)
	assert.Equal(t, 0, followers.calls)
}

func TestFanoutFollowerFailureIsolation(t *testing.T) {
	followers := &fakeFollowers{followers: []models.Follower{
		{TelegramID: 100},
		{TelegramID: 200},
		{TelegramID: 300},
	}}
	messenger := newFakeMessenger()
	messenger.failFor[200] = errors.New("blocked the bot")

	f := NewFanout(newFakeLock(), followers, &fakeFeed{quote: solQuote()}, messenger, zap.NewNop())
	require.NoError(t, f.HandlePickCreated(context.Background(), pickCreatedEvent()))

	assert.Len(t, messenger.sent, 2)
	assert.Contains(t, messenger.sent, int64(100))
	assert.Contains(t, messenger.sent, int64(300))
}

func TestFanoutZeroFollowers(t *testing.T) {
	messenger := newFakeMessenger()
	lock := newFakeLock()

	f := NewFanout(lock, &fakeFollowers{}, &fakeFeed{quote: solQuote()}, messenger, zap.NewNop())
	require.NoError(t, f.HandlePickCreated(context.Background(), pickCreatedEvent()))

	assert.Empty(t, messenger.sent)
	// The lock was still taken and released.
	assert.Equal(t, []string{"picks:notify:42"}, lock.released)
}

func TestFanoutReportFailureDegradesToPlaceholders(t *testing.T) {
	followers := &fakeFollowers{followers: []models.Follower{{TelegramID: 100}}}
	messenger := newFakeMessenger()
	feed := &fakeFeed{quote: solQuote(), reportErr: errors.New("rating service down")}

	f := NewFanout(newFakeLock(), followers, feed, messenger, zap.NewNop())
	require.NoError(t, f.HandlePickCreated(context.Background(), pickCreatedEvent()))

	require.Contains(t, messenger.sent, int64(100))
	msg := messenger.sent[100]
	assert.Contains(t, msg, noHolderData)
	assert.Contains(t, msg, unratedRisk)
}
