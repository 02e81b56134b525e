package runtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"

	"github.com/maia-os/covalue-core/internal/covalue"
)

// Store is the durable side of the local node: one table of CoValue rows
// plus one table of stream append-log items, backed by a Bun-managed
// Postgres/SQLite dual dialect selection.
type Store struct {
	db *bun.DB
}

// Config selects which dialect backs the store, trimmed to what this node
// needs.
type Config struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

// Open connects to the configured database and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var db *bun.DB
	switch cfg.Driver {
	case "postgres":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
		db = bun.NewDB(sqldb, pgdialect.New())
	case "sqlite", "":
		sqldb, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("runtime: open sqlite: %w", err)
		}
		if _, err := sqldb.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("runtime: enable foreign_keys: %w", err)
		}
		if _, err := sqldb.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			return nil, fmt.Errorf("runtime: enable WAL: %w", err)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("runtime: unknown driver %q", cfg.Driver)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*CoValueRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("runtime: create co_values: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*StreamItemRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("runtime: create co_stream_items: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get fetches the row for id, returning sql.ErrNoRows (wrapped) when absent.
func (s *Store) Get(ctx context.Context, id string) (*CoValueRow, error) {
	row := new(CoValueRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Upsert persists row, replacing any prior content for the same id.
func (s *Store) Upsert(ctx context.Context, row *CoValueRow) error {
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("variant = EXCLUDED.variant").
		Set("schema = EXCLUDED.schema").
		Set("ruleset_type = EXCLUDED.ruleset_type").
		Set("header_meta = EXCLUDED.header_meta").
		Set("content_json = EXCLUDED.content_json").
		Set("list_items = EXCLUDED.list_items").
		Set("available = EXCLUDED.available").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	return err
}

// AppendStreamItem inserts one stream log entry.
func (s *Store) AppendStreamItem(ctx context.Context, item *StreamItemRow) error {
	_, err := s.db.NewInsert().Model(item).Exec(ctx)
	return err
}

// StreamItems returns all rows for coValueID ordered by session then seq.
func (s *Store) StreamItems(ctx context.Context, coValueID string) ([]StreamItemRow, error) {
	var items []StreamItemRow
	err := s.db.NewSelect().
		Model(&items).
		Where("covalue_id = ?", coValueID).
		OrderExpr("session_id ASC, seq ASC").
		Scan(ctx)
	return items, err
}

// toHeader converts a row's stored header fields into a covalue.Header.
func toHeader(row *CoValueRow) covalue.Header {
	return covalue.Header{
		Schema:      row.Schema,
		RulesetType: row.RulesetType,
		Meta:        row.HeaderMeta.data,
	}
}

// marshalContent serialises a map/group/account snapshot for storage.
func marshalContent(data map[string]any) (jsonColumn, error) {
	return jsonColumn{data: data}, nil
}

// decodeListItems decodes the JSON array stored in ListItems.
func decodeListItems(raw string) ([]any, error) {
	if raw == "" {
		return nil, nil
	}
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("runtime: decode list items: %w", err)
	}
	return items, nil
}

func encodeListItems(items []any) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("runtime: encode list items: %w", err)
	}
	return string(b), nil
}
