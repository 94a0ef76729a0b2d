package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/config"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/model"
)

// Contention on a single klines row is resolved by blind retry: updates
// are idempotent upserts keyed by pair.
const (
	contentionRetries = 5
	contentionPause   = 50 * time.Millisecond
)

// Record is the cached state of one market, keyed by canonical pair.
type Record struct {
	Pair     string
	EndUnix  int64 // newest tick time reconciled, unix seconds
	Discrete []model.TradeTick
	Series   map[int64][]model.Candle // keyed by resolution seconds
}

// NewRecord returns an empty record for a pair.
func NewRecord(pair string, endUnix int64) *Record {
	series := make(map[int64][]model.Candle, len(model.Resolutions))
	for _, res := range model.Resolutions {
		series[res] = nil
	}
	return &Record{Pair: pair, EndUnix: endUnix, Series: series}
}

// Store provides keyed access to the market cache database.
type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// Connect creates the connection pool.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// New creates a Store on an existing pool.
func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Close closes the underlying pool.
func (s *Store) Close() {
	s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS klines (
		pair TEXT PRIMARY KEY,
		end_unix BIGINT NOT NULL DEFAULT 0,
		c86400 TEXT,
		c43200 TEXT,
		c14400 TEXT,
		c7200 TEXT,
		c3600 TEXT,
		c1800 TEXT,
		c900 TEXT,
		discrete TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		dynamic_id TEXT,
		pool_id TEXT,
		bitasset_id TEXT,
		symbol TEXT NOT NULL UNIQUE,
		"precision" INT,
		maker_fee NUMERIC,
		taker_fee NUMERIC,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS pools (
		id TEXT PRIMARY KEY,
		asset_a TEXT,
		asset_b TEXT,
		asset_a_name TEXT,
		asset_b_name TEXT,
		balance_a DOUBLE PRECISION,
		balance_b DOUBLE PRECISION,
		share_asset TEXT,
		share_asset_name TEXT,
		taker_fee_percent NUMERIC,
		withdrawal_fee_percent NUMERIC,
		virtual_value NUMERIC,
		pair TEXT,
		xyk TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		account_id TEXT PRIMARY KEY,
		account_name TEXT,
		is_ltm BOOLEAN
	)`,
}

// EnsureSchema creates all tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.db.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Reset drops and recreates all tables, erasing every cached record.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"klines", "assets", "pools", "accounts"} {
		if _, err := s.db.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return s.EnsureSchema(ctx)
}

// Ensure lazily creates the klines row for a pair. The watermark of a
// fresh row is set one staleness window in the past so the first fetch
// is never skipped.
func (s *Store) Ensure(ctx context.Context, pair string, endUnix int64) error {
	return s.withRetry(ctx, func() error {
		_, err := s.db.Exec(ctx,
			`INSERT INTO klines (pair, end_unix) VALUES ($1, $2)
			 ON CONFLICT (pair) DO NOTHING`,
			pair, endUnix,
		)
		return err
	})
}

// Get loads the record for a pair. ok is false when no row exists.
func (s *Store) Get(ctx context.Context, pair string) (*Record, bool, error) {
	var (
		endUnix  int64
		cols     = make([]*string, len(model.Resolutions))
		discrete *string
	)

	err := s.db.QueryRow(ctx,
		`SELECT end_unix, c86400, c43200, c14400, c7200, c3600, c1800, c900, discrete
		 FROM klines WHERE pair=$1`, pair,
	).Scan(&endUnix, &cols[6], &cols[5], &cols[4], &cols[3], &cols[2], &cols[1], &cols[0], &discrete)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select klines %s: %w", pair, err)
	}

	rec := NewRecord(pair, endUnix)
	for i, res := range model.Resolutions {
		series, err := decodeSeries(cols[i])
		if err != nil {
			return nil, false, fmt.Errorf("decode %s %s: %w", pair, model.SeriesColumn(res), err)
		}
		rec.Series[res] = series
	}
	if discrete != nil && *discrete != "" {
		if err := json.Unmarshal([]byte(*discrete), &rec.Discrete); err != nil {
			return nil, false, fmt.Errorf("decode %s discrete: %w", pair, err)
		}
	}
	return rec, true, nil
}

// Update persists a reconciled record as one single-statement row
// update, so a cancelled caller can never leave the row half-written.
func (s *Store) Update(ctx context.Context, rec *Record) error {
	encoded := make([]string, len(model.Resolutions))
	for i, res := range model.Resolutions {
		data, err := json.Marshal(rec.Series[res])
		if err != nil {
			return fmt.Errorf("encode %s: %w", model.SeriesColumn(res), err)
		}
		encoded[i] = string(data)
	}
	discrete, err := json.Marshal(rec.Discrete)
	if err != nil {
		return fmt.Errorf("encode discrete: %w", err)
	}

	return s.withRetry(ctx, func() error {
		_, err := s.db.Exec(ctx,
			`UPDATE klines
			 SET end_unix=$1, c86400=$2, c43200=$3, c14400=$4,
			     c7200=$5, c3600=$6, c1800=$7, c900=$8, discrete=$9
			 WHERE pair=$10`,
			rec.EndUnix,
			encoded[6], encoded[5], encoded[4], encoded[3],
			encoded[2], encoded[1], encoded[0],
			string(discrete),
			rec.Pair,
		)
		return err
	})
}

// EndUnix returns the freshness watermark for a pair, 0 when no row
// exists yet.
func (s *Store) EndUnix(ctx context.Context, pair string) (int64, error) {
	var endUnix int64
	err := s.db.QueryRow(ctx,
		"SELECT end_unix FROM klines WHERE pair=$1", pair,
	).Scan(&endUnix)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select end_unix %s: %w", pair, err)
	}
	return endUnix, nil
}

func decodeSeries(col *string) ([]model.Candle, error) {
	if col == nil || *col == "" {
		return nil, nil
	}
	var series []model.Candle
	if err := json.Unmarshal([]byte(*col), &series); err != nil {
		return nil, err
	}
	return series, nil
}

// withRetry runs fn, retrying with a short pause on store contention.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < contentionRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		s.logger.Warn("store contention, retrying", "attempt", attempt+1, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(contentionPause):
		}
	}
	return fmt.Errorf("store contention not resolved: %w", err)
}
