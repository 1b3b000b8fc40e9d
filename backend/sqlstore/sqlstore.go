// Package sqlstore keeps menu collections in SQL tables through database/sql.
// SQLite (modernc.org/sqlite) and Postgres (pgx) are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/jacentio/carte/store"
)

// Dialect captures the differences between supported databases.
type Dialect struct {
	// Name identifies the dialect in logs and configuration.
	Name string

	// Driver is the database/sql driver name.
	Driver string

	// DefaultDSN is used when Open is given an empty DSN.
	DefaultDSN string

	// SingleConn limits the pool to one connection (in-memory SQLite
	// databases are per connection).
	SingleConn bool

	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
}

var (
	// SQLite uses modernc.org/sqlite. The default DSN is an in-memory database
	// that lives as long as the process.
	SQLite = Dialect{
		Name:        "sqlite",
		Driver:      "sqlite",
		DefaultDSN:  "file::memory:?cache=shared",
		SingleConn:  true,
		placeholder: func(int) string { return "?" },
	}

	// Postgres uses github.com/jackc/pgx/v5/stdlib.
	Postgres = Dialect{
		Name:        "postgres",
		Driver:      "pgx",
		DefaultDSN:  "postgres://localhost/carte?sslmode=disable",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

// DialectByName returns the dialect called name ("sqlite" or "postgres").
func DialectByName(name string) (Dialect, bool) {
	switch name {
	case SQLite.Name:
		return SQLite, true
	case Postgres.Name:
		return Postgres, true
	}
	return Dialect{}, false
}

// Backend implements store.Backend on SQL tables.
type Backend struct {
	db      *sql.DB
	dialect Dialect

	// seq orders rows by insertion; seeded from the clock so restarts keep growing.
	seq atomic.Int64
}

// Open connects to the database and creates the tables if needed.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Backend, error) {
	if dsn == "" {
		dsn = dialect.DefaultDSN
	}
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if dialect.SingleConn {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}
	b := &Backend{db: db, dialect: dialect}
	b.seq.Store(time.Now().UnixNano())
	if err := b.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// TableName returns the table holding records of kind.
func TableName(kind store.Kind) string {
	return "carte_" + kind.Plural()
}

func (b *Backend) migrate(ctx context.Context) error {
	for _, kind := range store.Kinds() {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL DEFAULT '',
			fields TEXT NOT NULL,
			seq BIGINT NOT NULL
		)`, TableName(kind))
		if _, err := b.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", TableName(kind), err)
		}
	}
	return nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (b *Backend) DB() *sql.DB { return b.db }

// Collection returns the table-backed collection for kind.
func (b *Backend) Collection(kind store.Kind) store.Collection {
	if !kind.Valid() {
		return nil
	}
	return &table{backend: b, kind: kind, name: TableName(kind)}
}

type table struct {
	backend *Backend
	kind    store.Kind
	name    string
}

func (t *table) bind(n int) string {
	return t.backend.dialect.placeholder(n)
}

func (t *table) Insert(ctx context.Context, rec *store.Record) error {
	fields, err := rec.Fields.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, parent_id, fields, seq) VALUES (%s, %s, %s, %s) ON CONFLICT (id) DO NOTHING`,
		t.name, t.bind(1), t.bind(2), t.bind(3), t.bind(4))
	res, err := t.backend.db.ExecContext(ctx, q, rec.ID, rec.ParentID, string(fields), t.backend.seq.Add(1))
	if err != nil {
		return fmt.Errorf("insert into %s: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrDuplicateKey
	}
	return nil
}

func (t *table) scan(row interface{ Scan(...any) error }) (*store.Record, error) {
	var (
		id, parentID, raw string
	)
	if err := row.Scan(&id, &parentID, &raw); err != nil {
		return nil, err
	}
	fields := store.NewFields()
	if err := fields.UnmarshalJSON([]byte(raw)); err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", id, err)
	}
	return &store.Record{Kind: t.kind, ID: id, ParentID: parentID, Fields: fields}, nil
}

func (t *table) Get(ctx context.Context, id string) (*store.Record, error) {
	q := fmt.Sprintf(`SELECT id, parent_id, fields FROM %s WHERE id = %s`, t.name, t.bind(1))
	rec, err := t.scan(t.backend.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &store.NotFoundError{Kind: t.kind, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", t.name, err)
	}
	return rec, nil
}

func (t *table) List(ctx context.Context) ([]*store.Record, error) {
	q := fmt.Sprintf(`SELECT id, parent_id, fields FROM %s ORDER BY seq, id`, t.name)
	rows, err := t.backend.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", t.name, err)
	}
	defer func() { _ = rows.Close() }()

	recs := []*store.Record{}
	for rows.Next() {
		rec, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return recs, nil
}

func (t *table) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, t.name, t.bind(1))
	if _, err := t.backend.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("delete from %s: %w", t.name, err)
	}
	return nil
}

func (t *table) Replace(ctx context.Context, rec *store.Record) error {
	fields, err := rec.Fields.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	q := fmt.Sprintf(`UPDATE %s SET parent_id = %s, fields = %s WHERE id = %s`,
		t.name, t.bind(1), t.bind(2), t.bind(3))
	res, err := t.backend.db.ExecContext(ctx, q, rec.ParentID, string(fields), rec.ID)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &store.NotFoundError{Kind: t.kind, ID: rec.ID}
	}
	return nil
}
