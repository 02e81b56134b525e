// Package runtime is the minimal local node the CoValue backend core
// materialises against. It is intentionally not a CRDT implementation: no
// merge algorithm, no peer sync, no wire framing. It only satisfies the
// narrow BackendHandle surface the core depends on, backed by a
// Bun-managed SQLite/PostgreSQL store.
package runtime

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// jsonColumn is a generic JSON-in-a-column helper, a Scan/Value pattern
// for storing an arbitrary JSON document in a single database column.
type jsonColumn struct {
	data map[string]any
}

func (j *jsonColumn) Scan(value any) error {
	if value == nil {
		j.data = map[string]any{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("jsonColumn: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		j.data = map[string]any{}
		return nil
	}
	return json.Unmarshal(raw, &j.data)
}

func (j jsonColumn) Value() (driver.Value, error) {
	if j.data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(j.data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// CoValueRow is the durable row backing one CoValue core.
type CoValueRow struct {
	bun.BaseModel `bun:"table:co_values,alias:cv"`

	ID          string     `bun:"id,pk"`
	Variant     string     `bun:"variant,notnull"`
	Schema      string     `bun:"schema"`
	RulesetType string     `bun:"ruleset_type"`
	HeaderMeta  jsonColumn `bun:"header_meta,type:jsonb"`
	ContentJSON jsonColumn `bun:"content_json,type:jsonb"`
	ListItems   string     `bun:"list_items,type:text"` // JSON array, used only for list variant
	Available   bool       `bun:"available,notnull,default:true"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// StreamItemRow is one append to one session of one stream CoValue,
// modelling the "session-partitioned append-only log" of.
type StreamItemRow struct {
	bun.BaseModel `bun:"table:co_stream_items,alias:si"`

	ID          int64     `bun:"id,pk,autoincrement"`
	CoValueID   string    `bun:"covalue_id,notnull"`
	SessionID   string    `bun:"session_id,notnull"`
	Seq         int       `bun:"seq,notnull"`
	ValueJSON   string    `bun:"value_json,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
