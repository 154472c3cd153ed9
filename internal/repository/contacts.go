package repository

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/index"
)

const (
	contactsTable = "contacts"
	sourcesTable  = "sources"
)

var contactColumns = []string{"id", "email", "email_context", "domain", "from_ref", "id_source", "run_id", "updated_at"}

// ContactStore is the SQL index sink. The same code serves SQLite and
// Postgres; only the builder dialect differs.
type ContactStore struct {
	db *DB
}

func NewContactStore(db *DB) *ContactStore {
	return &ContactStore{db: db}
}

func (s *ContactStore) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.db.Dialect)
}

// Both dialects accept this DDL as written.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS ` + contactsTable + ` (
	id varchar(64) NOT NULL PRIMARY KEY,
	email text NOT NULL,
	email_context text,
	domain text,
	from_ref text,
	id_source text,
	run_id text,
	updated_at text
)`,
	`CREATE TABLE IF NOT EXISTS ` + sourcesTable + ` (
	id varchar(64) NOT NULL PRIMARY KEY,
	title text NOT NULL,
	grp text,
	description text,
	website text,
	url text,
	country text,
	discovered text
)`,
	`CREATE INDEX IF NOT EXISTS contacts_domain_idx ON ` + contactsTable + ` (domain)`,
}

// maxBindParams stays under SQLite's default variable limit (32766), which
// is tighter than Postgres's 65535.
const maxBindParams = 32000

// EnsureSchema creates the contact and source tables when missing.
func (s *ContactStore) EnsureSchema(ctx context.Context) error {
	for _, q := range schemaDDL {
		if err := s.db.Driver.Exec(ctx, q, []any{}, nil); err != nil {
			return dbErr("ensure schema", err)
		}
	}
	return nil
}

// collapseByID keeps one record per id. The last one wins, at the position
// where the id first appeared. Postgres refuses an upsert statement that
// touches the same row twice.
func collapseByID(records []index.Record) []index.Record {
	pos := make(map[string]int, len(records))
	out := make([]index.Record, 0, len(records))
	for _, r := range records {
		if i, ok := pos[r.ID]; ok {
			out[i] = r
			continue
		}
		pos[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

// chunkRows splits records so no statement binds more than maxBindParams.
func chunkRows(records []index.Record, columns int) [][]index.Record {
	per := maxBindParams / columns
	var chunks [][]index.Record
	for len(records) > per {
		chunks = append(chunks, records[:per])
		records = records[per:]
	}
	if len(records) > 0 {
		chunks = append(chunks, records)
	}
	return chunks
}

// Upsert writes records in one transaction. Rows with an existing id are
// overwritten; repeated ids within the batch collapse to the last record.
func (s *ContactStore) Upsert(ctx context.Context, records []index.Record) error {
	if len(records) == 0 {
		return nil
	}
	unique := collapseByID(records)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.Driver.Tx(ctx)
	if err != nil {
		return dbErr("begin", err)
	}
	for _, chunk := range chunkRows(unique, len(contactColumns)) {
		ins := s.builder().Insert(contactsTable).Columns(contactColumns...)
		for _, r := range chunk {
			ins.Values(r.ID, r.Email, r.Context, r.Domain, r.From, r.IDSource, r.RunID, now)
		}
		q, args := ins.OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWithNewValues(),
		).Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			_ = tx.Rollback()
			return dbErr(fmt.Sprintf("upsert %d contacts", len(chunk)), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return dbErr("commit", err)
	}
	common.LoggerFromContext(ctx).Debug("repository.contacts.upserted",
		"rows", len(unique), "collapsed", len(records)-len(unique), "dialect", s.db.Dialect)
	return nil
}

// RegisterSource inserts or replaces source metadata.
func (s *ContactStore) RegisterSource(ctx context.Context, meta index.SourceMeta) error {
	q, args := s.builder().Insert(sourcesTable).
		Columns("id", "title", "grp", "description", "website", "url", "country", "discovered").
		Values(meta.ID, meta.Title, meta.Group, meta.Description, meta.Website, meta.URL, meta.Country,
			meta.Discovered.UTC().Format(time.RFC3339)).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if err := s.db.Driver.Exec(ctx, q, args, nil); err != nil {
		return dbErr("register source", err)
	}
	return nil
}

// Count returns the number of stored contacts.
func (s *ContactStore) Count(ctx context.Context) (int, error) {
	q, args := s.builder().Select(entsql.Count("*")).From(entsql.Table(contactsTable)).Query()
	return s.scalar(ctx, q, args)
}

// Contact loads one stored record by id.
func (s *ContactStore) Contact(ctx context.Context, id string) (index.Record, error) {
	q, args := s.builder().Select(contactColumns[:7]...).
		From(entsql.Table(contactsTable)).
		Where(entsql.EQ("id", id)).
		Query()
	rows := &entsql.Rows{}
	if err := s.db.Driver.Query(ctx, q, args, rows); err != nil {
		return index.Record{}, dbErr("select contact", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return index.Record{}, dbErr("select contact", err)
		}
		return index.Record{}, common.NewAppError("NOT_FOUND", "contact "+id, common.ErrNotFound)
	}
	var r index.Record
	if err := rows.Scan(&r.ID, &r.Email, &r.Context, &r.Domain, &r.From, &r.IDSource, &r.RunID); err != nil {
		return index.Record{}, dbErr("scan contact", err)
	}
	return r, nil
}

func (s *ContactStore) scalar(ctx context.Context, q string, args []any) (int, error) {
	rows := &entsql.Rows{}
	if err := s.db.Driver.Query(ctx, q, args, rows); err != nil {
		return 0, dbErr("query", err)
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, dbErr("scan", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, dbErr("rows", err)
	}
	return n, nil
}
