// Package ch provides a clickhouse client over the native protocol
package ch

import (
	"context"
	"errors"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse client
type Config struct {
	URL string

	// App/Role end up in the server-side client info for query attribution
	App  string
	Role string
}

// Rows is the minimal result set iteration for ch
// driver.Rows satisfies it as-is
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// CH is a clickhouse client over a native driver connection pool
type CH struct {
	conn driver.Conn
}

// Open parses the DSN and builds a lazily-connecting client
// No dial happens here; readiness is checked via Ping
func Open(_ context.Context, cfg Config) (*CH, error) {
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.ClientInfo = BuildClientInfo(cfg.Role, cfg.App)

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	return &CH{conn: conn}, nil
}

// Insert appends rows into table via a prepared batch
func (c *CH) Insert(ctx context.Context, table string, rows [][]any) error {
	if c == nil || c.conn == nil {
		return errors.New("ch: nil client")
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := batch.Append(r...); err != nil {
			return err
		}
	}
	return batch.Send()
}

// Query runs a query and returns ch.Rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if c == nil || c.conn == nil {
		return nil, errors.New("ch: nil client")
	}
	return c.conn.Query(ctx, sql, args...)
}

// Ping verifies connectivity
func (c *CH) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errors.New("ch: nil client")
	}
	return c.conn.Ping(ctx)
}

// Close closes the underlying connection pool
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
