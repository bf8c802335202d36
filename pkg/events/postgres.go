package events

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresTransport receives NOTIFY messages over one dedicated connection
// held out of the shared pool for the lifetime of the subscription.
type PostgresTransport struct {
	conn   *pgxpool.Conn
	logger *zap.Logger
}

// PostgresDialer returns a Dialer that acquires a dedicated connection from
// pool for LISTEN/NOTIFY.
func PostgresDialer(pool *pgxpool.Pool, logger *zap.Logger) Dialer {
	return func(ctx context.Context) (Transport, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire listen connection: %w", err)
		}
		return &PostgresTransport{conn: conn, logger: logger}, nil
	}
}

func (t *PostgresTransport) Listen(ctx context.Context, channel string) error {
	// Channel names contain dots, so they must be quoted as identifiers.
	_, err := t.conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

func (t *PostgresTransport) WaitForNotification(ctx context.Context) (Notification, error) {
	n, err := t.conn.Conn().WaitForNotification(ctx)
	if err != nil {
		return Notification{}, err
	}
	return Notification{Channel: n.Channel, Payload: n.Payload}, nil
}

func (t *PostgresTransport) Close(ctx context.Context) {
	// The connection goes back into the shared pool; drop the subscriptions
	// so the next borrower does not inherit them. Runs on its own deadline
	// because Close is usually reached after ctx is already cancelled.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	_, _ = t.conn.Exec(cctx, "UNLISTEN *")
	t.conn.Release()
}
