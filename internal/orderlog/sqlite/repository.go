// Package sqlite provides a SQLite-backed implementation of orderlog.Repository.
//
// WAL mode is enabled on Open so that readers never block writers: expiry
// timers append while HTTP handlers may be reading an order's history.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jcmexdev/shoe-market/internal/orderlog"

	// Pure-Go driver, no CGO.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS order_log (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Decimal text: SQLite integers are signed and memos use all 64 bits.
    correlation_id  TEXT        NOT NULL,

    item_id         TEXT        NOT NULL DEFAULT '',
    event           TEXT        NOT NULL,
    principal       TEXT        NOT NULL DEFAULT '',
    detail          TEXT,
    trace_id        TEXT        NOT NULL DEFAULT '',
    span_id         TEXT        NOT NULL DEFAULT '',
    recorded_at     TEXT        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_log_correlation ON order_log(correlation_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_order_log_trace_id ON order_log(trace_id);
`

// Repository is the SQLite implementation of orderlog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
//
//	repo, err := sqlite.Open("./data/orders.db")
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts a new entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *orderlog.Entry) error {
	const q = `
		INSERT INTO order_log
			(correlation_id, item_id, event, principal, detail, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		strconv.FormatUint(entry.CorrelationID, 10),
		entry.ItemID,
		string(entry.Event),
		entry.Principal,
		nullableString(entry.Detail),
		entry.TraceID,
		entry.SpanID,
		formatTime(entry.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save order log for %d: %w", entry.CorrelationID, err)
	}
	return nil
}

// History returns every entry for a correlation id, oldest first.
func (r *Repository) History(ctx context.Context, correlationID uint64) ([]orderlog.Entry, error) {
	const q = `
		SELECT correlation_id, item_id, event, principal, COALESCE(detail, ''),
		       trace_id, span_id, recorded_at
		FROM   order_log
		WHERE  correlation_id = ?
		ORDER  BY recorded_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, strconv.FormatUint(correlationID, 10))
	if err != nil {
		return nil, fmt.Errorf("sqlite: history for %d: %w", correlationID, err)
	}
	defer rows.Close()

	var out []orderlog.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: history for %d: %w", correlationID, err)
	}
	return out, nil
}

// Latest returns the most recent entry for a correlation id.
func (r *Repository) Latest(ctx context.Context, correlationID uint64) (*orderlog.Entry, error) {
	const q = `
		SELECT correlation_id, item_id, event, principal, COALESCE(detail, ''),
		       trace_id, span_id, recorded_at
		FROM   order_log
		WHERE  correlation_id = ?
		ORDER  BY recorded_at DESC, id DESC
		LIMIT  1`

	rows, err := r.db.QueryContext(ctx, q, strconv.FormatUint(correlationID, 10))
	if err != nil {
		return nil, fmt.Errorf("sqlite: latest for %d: %w", correlationID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("sqlite: latest for %d: %w", correlationID, err)
		}
		return nil, fmt.Errorf("sqlite: order %d not found", correlationID)
	}
	e, err := scanEntry(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEntry(rows *sql.Rows) (orderlog.Entry, error) {
	var e orderlog.Entry
	var correlationID, event, recordedAt string
	if err := rows.Scan(
		&correlationID,
		&e.ItemID,
		&event,
		&e.Principal,
		&e.Detail,
		&e.TraceID,
		&e.SpanID,
		&recordedAt,
	); err != nil {
		return e, fmt.Errorf("sqlite: scan order log: %w", err)
	}

	id, err := strconv.ParseUint(correlationID, 10, 64)
	if err != nil {
		return e, fmt.Errorf("sqlite: parse correlation id %q: %w", correlationID, err)
	}
	e.CorrelationID = id
	e.Event = orderlog.Event(event)

	if e.RecordedAt, err = parseRFC3339(recordedAt); err != nil {
		return e, err
	}
	return e, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

// nullableString stores NULL instead of an empty TEXT.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
