// Package store imports inventory records into PostgreSQL.
//
// Each record becomes one row of the assets table keyed by (hostname,
// domain). Columns are named <category>_<field> after the record schema, so
// adding a field to the schema adds a column here. Absent values are stored
// as NULL.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/inventory/internal/asset"
	"github.com/JonMunkholm/inventory/internal/config"
)

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store writes records to PostgreSQL.
type Store struct {
	db DB
}

// New returns a Store over db.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a connection pool with the configured limits and verifies it.
// The caller closes the returned pool.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to database", "database", poolConfig.ConnConfig.Database)
	return pool, nil
}

// ColumnName returns the assets column that stores key.
func ColumnName(key asset.FieldKey) string {
	return string(key.Category) + "_" + key.Name
}

func columnType(spec asset.FieldSpec) string {
	if spec.Kind == asset.KindFlag {
		return "BOOLEAN"
	}
	return "TEXT"
}

// schemaSQL creates the import log and the assets table.
func schemaSQL() string {
	var b strings.Builder
	b.WriteString(`CREATE TABLE IF NOT EXISTS asset_imports (
	id UUID PRIMARY KEY,
	records INTEGER NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS assets (
	hostname TEXT NOT NULL,
	domain TEXT NOT NULL,
`)
	for _, spec := range asset.Schema {
		fmt.Fprintf(&b, "\t%s %s,\n", ColumnName(spec.Key), columnType(spec))
	}
	b.WriteString(`	import_id UUID NOT NULL REFERENCES asset_imports (id),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (hostname, domain)
);`)
	return b.String()
}

// upsertSQL inserts one asset or replaces every column of an existing one.
func upsertSQL() string {
	cols := []string{"hostname", "domain"}
	for _, spec := range asset.Schema {
		cols = append(cols, ColumnName(spec.Key))
	}
	cols = append(cols, "import_id")

	params := make([]string, len(cols))
	for i := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
	}

	updates := make([]string, 0, len(cols)-2+1)
	for _, c := range cols[2:] {
		updates = append(updates, c+" = EXCLUDED."+c)
	}
	updates = append(updates, "updated_at = now()")

	return fmt.Sprintf("INSERT INTO assets (%s) VALUES (%s) ON CONFLICT (hostname, domain) DO UPDATE SET %s",
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
		strings.Join(updates, ", "),
	)
}

const insertImportSQL = `INSERT INTO asset_imports (id, records) VALUES ($1, $2)`

const countAssetsSQL = `SELECT count(*) FROM assets`

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertAssets writes records in one transaction tagged with batchID.
// Either every record is stored or none is.
func (s *Store) UpsertAssets(ctx context.Context, batchID uuid.UUID, records []asset.Record) error {
	start := time.Now()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	importID := ToPgUUID(batchID)
	if _, err := tx.Exec(ctx, insertImportSQL, importID, len(records)); err != nil {
		return fmt.Errorf("record import batch: %w", err)
	}

	query := upsertSQL()
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query, assetArgs(rec, importID)...)
	}

	results := tx.SendBatch(ctx, batch)
	for _, rec := range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert %s: %w", rec.Identity(), err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("assets imported",
		"batch_id", batchID,
		"records", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// CountAssets returns the number of stored assets.
func (s *Store) CountAssets(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, countAssetsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return n, nil
}

// assetArgs returns the upsert parameters of rec in upsertSQL column order.
func assetArgs(rec asset.Record, importID pgtype.UUID) []any {
	args := make([]any, 0, len(asset.Schema)+3)
	args = append(args, rec.Hostname, rec.Domain)
	for _, spec := range asset.Schema {
		v := rec.Get(spec.Key)
		if spec.Kind == asset.KindFlag {
			args = append(args, ToPgBool(v))
		} else {
			args = append(args, ToPgText(v))
		}
	}
	return append(args, importID)
}

// ToPgText converts a record value to pgtype.Text. Absent values and flags
// are NULL.
func ToPgText(v asset.Value) pgtype.Text {
	s, ok := v.Text()
	if !ok {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgBool converts a record value to pgtype.Bool. Absent values and text
// are NULL.
func ToPgBool(v asset.Value) pgtype.Bool {
	b, ok := v.Flag()
	if !ok {
		return pgtype.Bool{Valid: false}
	}
	return pgtype.Bool{Bool: b, Valid: true}
}

// ToPgUUID converts a uuid.UUID to pgtype.UUID.
func ToPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
