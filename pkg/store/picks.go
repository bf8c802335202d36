package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lucaspere/picktracker/pkg/models"
)

// Numeric columns are cast to text and parsed into decimals so the scan path
// never loses precision on large market caps.
const pickColumns = `
	tp.id,
	tp.user_id,
	u.username,
	tp.group_id,
	tp.telegram_message_id,
	tp.price_at_call::text,
	tp.market_cap_at_call::text,
	tp.supply_at_call::text,
	tp.call_date,
	tp.highest_market_cap::text,
	tp.hit_date,
	t.address,
	t.chain,
	t.symbol,
	t.name,
	t.market_cap::text,
	t.liquidity::text,
	t.volume_24h::text,
	t.holder_count,
	t.supply::text`

const pickFrom = `
	FROM social.token_picks tp
	JOIN social.tokens t ON t.address = tp.token_address
	JOIN public."user" u ON u.id = tp.user_id`

// PickUpdate is the bulk-persist payload for one pick. The SQL applies it
// monotonically: the high-water mark can only rise and the hit date is
// write-once, so replays and concurrent runs cannot regress state.
type PickUpdate struct {
	ID               int64
	HighestMarketCap decimal.Decimal
	HitDate          *time.Time
}

// LoadOpenPicks returns every pick still eligible for tracking (called on or
// after since), grouped by token address.
func (s *Store) LoadOpenPicks(ctx context.Context, since time.Time) (map[string][]*models.Pick, error) {
	query := `SELECT` + pickColumns + pickFrom + `
	WHERE tp.call_date >= $1
	ORDER BY tp.token_address, tp.call_date`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("load open picks: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]*models.Pick)
	for rows.Next() {
		pick, err := scanPick(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pick row: %w", err)
		}
		grouped[pick.Token.Address] = append(grouped[pick.Token.Address], pick)
	}
	return grouped, rows.Err()
}

// GroupPicks returns a group's picks called on or after since, used by the
// leaderboard force-refresh recompute.
func (s *Store) GroupPicks(ctx context.Context, groupID int64, since time.Time) ([]*models.Pick, error) {
	query := `SELECT` + pickColumns + pickFrom + `
	WHERE tp.group_id = $1 AND tp.call_date >= $2
	ORDER BY tp.call_date`

	rows, err := s.pool.Query(ctx, query, groupID, since)
	if err != nil {
		return nil, fmt.Errorf("load group %d picks: %w", groupID, err)
	}
	defer rows.Close()

	var picks []*models.Pick
	for rows.Next() {
		pick, err := scanPick(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pick row: %w", err)
		}
		picks = append(picks, pick)
	}
	return picks, rows.Err()
}

// BulkPersist writes one batch of pick updates in a single transaction and
// round trip. An error aborts only this batch; sibling batches commit
// independently.
func (s *Store) BulkPersist(ctx context.Context, updates []PickUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin pick update tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`
			UPDATE social.token_picks
			SET highest_market_cap = GREATEST(COALESCE(highest_market_cap, 0), $1::numeric),
			    hit_date = COALESCE(hit_date, $2)
			WHERE id = $3`,
			u.HighestMarketCap.Round(8).String(), u.HitDate, u.ID)
	}

	br := tx.SendBatch(ctx, batch)
	for range updates {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("bulk persist %d picks: %w", len(updates), err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close pick update batch: %w", err)
	}
	return tx.Commit(ctx)
}

// FollowersOf returns the followers of a pick owner that have a messaging
// identity to deliver to.
func (s *Store) FollowersOf(ctx context.Context, userID uuid.UUID) ([]models.Follower, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.username, u.telegram_id
		FROM social.user_follows f
		JOIN public."user" u ON u.id = f.follower_id
		WHERE f.followed_id = $1 AND u.telegram_id IS NOT NULL`, userID)
	if err != nil {
		return nil, fmt.Errorf("load followers of %s: %w", userID, err)
	}
	defer rows.Close()

	var followers []models.Follower
	for rows.Next() {
		var f models.Follower
		if err := rows.Scan(&f.UserID, &f.Username, &f.TelegramID); err != nil {
			return nil, fmt.Errorf("scan follower row: %w", err)
		}
		followers = append(followers, f)
	}
	return followers, rows.Err()
}

// UpsertTokens refreshes token metadata from the feed. Rows missing any of
// the identifying fields are skipped rather than failing the batch.
func (s *Store) UpsertTokens(ctx context.Context, tokens []models.Token) error {
	batch := &pgx.Batch{}
	for _, t := range tokens {
		if t.Address == "" || t.Chain == "" || t.Symbol == "" {
			continue
		}
		batch.Queue(`
			INSERT INTO social.tokens (address, chain, symbol, name, market_cap, liquidity, volume_24h, holder_count, supply)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9::numeric)
			ON CONFLICT (address, chain) DO UPDATE SET
				symbol = EXCLUDED.symbol,
				name = EXCLUDED.name,
				market_cap = EXCLUDED.market_cap,
				liquidity = EXCLUDED.liquidity,
				volume_24h = EXCLUDED.volume_24h,
				holder_count = EXCLUDED.holder_count,
				supply = EXCLUDED.supply`,
			t.Address, t.Chain, t.Symbol, t.Name,
			decimalArg(t.MarketCap), decimalArg(t.Liquidity), decimalArg(t.Volume24h),
			t.HolderCount, decimalArg(t.Supply))
	}
	if batch.Len() == 0 {
		return nil
	}

	br := s.pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert %d tokens: %w", batch.Len(), err)
		}
	}
	return br.Close()
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

type pickRow interface {
	Scan(dest ...any) error
}

func scanPick(row pickRow) (*models.Pick, error) {
	var (
		p                                        models.Pick
		priceAtCall, mcAtCall                    string
		supplyAtCall, highestMC                  *string
		tokenMC, tokenLiq, tokenVol, tokenSupply *string
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.Username, &p.GroupID, &p.TelegramMessageID,
		&priceAtCall, &mcAtCall, &supplyAtCall, &p.CallDate, &highestMC, &p.HitDate,
		&p.Token.Address, &p.Token.Chain, &p.Token.Symbol, &p.Token.Name,
		&tokenMC, &tokenLiq, &tokenVol, &p.Token.HolderCount, &tokenSupply,
	)
	if err != nil {
		return nil, err
	}

	if p.PriceAtCall, err = decimal.NewFromString(priceAtCall); err != nil {
		return nil, fmt.Errorf("pick %d price_at_call: %w", p.ID, err)
	}
	if p.MarketCapAtCall, err = decimal.NewFromString(mcAtCall); err != nil {
		return nil, fmt.Errorf("pick %d market_cap_at_call: %w", p.ID, err)
	}
	if p.SupplyAtCall, err = parseOptDecimal(supplyAtCall); err != nil {
		return nil, fmt.Errorf("pick %d supply_at_call: %w", p.ID, err)
	}
	if p.HighestMarketCap, err = parseOptDecimal(highestMC); err != nil {
		return nil, fmt.Errorf("pick %d highest_market_cap: %w", p.ID, err)
	}
	if p.Token.MarketCap, err = parseOptDecimal(tokenMC); err != nil {
		return nil, fmt.Errorf("token %s market_cap: %w", p.Token.Address, err)
	}
	if p.Token.Liquidity, err = parseOptDecimal(tokenLiq); err != nil {
		return nil, fmt.Errorf("token %s liquidity: %w", p.Token.Address, err)
	}
	if p.Token.Volume24h, err = parseOptDecimal(tokenVol); err != nil {
		return nil, fmt.Errorf("token %s volume_24h: %w", p.Token.Address, err)
	}
	if p.Token.Supply, err = parseOptDecimal(tokenSupply); err != nil {
		return nil, fmt.Errorf("token %s supply: %w", p.Token.Address, err)
	}
	return &p, nil
}

func parseOptDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
