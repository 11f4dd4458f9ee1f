package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/encounters/internal/core"
)

// DBTX is the subset of *pgxpool.Pool the Postgres sink needs.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Ping(context.Context) error
}

// encounterColumns is the COPY column order; copyRow produces values in the
// same order.
var encounterColumns = []string{"id", "run_id", "source_row", "natural_key", "doc", "created_at"}

// Postgres stores encounters as JSONB documents in a single table.
type Postgres struct {
	db      DBTX
	table   pgx.Identifier
	now     func() time.Time
	newID   func() uuid.UUID
	marshal func(any) ([]byte, error)
}

// NewPostgres creates the table if it does not exist.
func NewPostgres(ctx context.Context, db DBTX, table string) (*Postgres, error) {
	p := &Postgres{
		db:      db,
		table:   pgx.Identifier{table},
		now:     time.Now,
		newID:   uuid.New,
		marshal: json.Marshal,
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          uuid PRIMARY KEY,
	run_id      text NOT NULL,
	source_row  integer NOT NULL,
	natural_key text NOT NULL,
	doc         jsonb NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now()
)`, p.table.Sanitize())

	if _, err := db.Exec(ctx, ddl); err != nil {
		return nil, errors.Wrapf(err, "create table %s", table)
	}
	return p, nil
}

// copyRow returns the column values for one encounter.
func (p *Postgres) copyRow(e core.Encounter) ([]any, error) {
	doc, err := p.marshal(e)
	if err != nil {
		return nil, errors.Wrapf(err, "encode row %d", e.Src.Row)
	}
	return []any{
		p.newID(),
		e.Src.RunID,
		int32(e.Src.Row),
		e.Src.NaturalKey,
		doc,
		p.now().UTC(),
	}, nil
}

// WriteBatch loads docs with COPY. If COPY fails the whole statement is
// rolled back, so each document is then inserted on its own and the
// successes are counted. Documents that cannot be encoded are skipped.
func (p *Postgres) WriteBatch(ctx context.Context, docs []core.Encounter) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var errs []error
	rows := make([][]any, 0, len(docs))
	srcRows := make([]int, 0, len(docs))
	for _, doc := range docs {
		r, err := p.copyRow(doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, r)
		srcRows = append(srcRows, doc.Src.Row)
	}
	if len(rows) == 0 {
		return 0, errors.Join(errs...)
	}

	n, err := p.db.CopyFrom(ctx, p.table, encounterColumns, pgx.CopyFromRows(rows))
	if err == nil {
		return int(n), errors.Join(errs...)
	}
	slog.Warn("copy failed, inserting rows individually", "rows", len(rows), "error", err)

	insert := fmt.Sprintf(
		"INSERT INTO %s (id, run_id, source_row, natural_key, doc, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		p.table.Sanitize(),
	)

	var written int
	for i, r := range rows {
		if _, err := p.db.Exec(ctx, insert, r...); err != nil {
			errs = append(errs, errors.Wrapf(err, "row %d", srcRows[i]))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}

// Ping checks the connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return errors.Wrap(p.db.Ping(ctx), "ping postgres")
}

// Count returns the planner estimate and the exact row count.
func (p *Postgres) Count(ctx context.Context) (Counts, error) {
	name := p.table[len(p.table)-1]
	c := Counts{Target: name}

	err := p.db.QueryRow(ctx,
		"SELECT GREATEST(reltuples, 0)::bigint FROM pg_class WHERE relname = $1", name,
	).Scan(&c.Estimated)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Counts{}, errors.Wrap(err, "estimate count")
	}

	err = p.db.QueryRow(ctx, "SELECT count(*) FROM "+p.table.Sanitize()).Scan(&c.Exact)
	if err != nil {
		return Counts{}, errors.Wrap(err, "count rows")
	}
	return c, nil
}

// Export writes every stored document as one JSON line, in load order.
func (p *Postgres) Export(ctx context.Context, w io.Writer, _ int) (int64, error) {
	rows, err := p.db.Query(ctx,
		"SELECT doc FROM "+p.table.Sanitize()+" ORDER BY created_at, run_id, source_row")
	if err != nil {
		return 0, errors.Wrap(err, "query documents")
	}
	defer rows.Close()

	bw := bufio.NewWriter(w)
	var n int64
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return n, errors.Wrap(err, "scan document")
		}
		if _, err := bw.Write(append(doc, '\n')); err != nil {
			return n, errors.Wrap(err, "write export")
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, errors.Wrap(err, "iterate documents")
	}
	return n, errors.Wrap(bw.Flush(), "flush export")
}

// Close is a no-op; the pool is owned by the caller.
func (p *Postgres) Close(context.Context) error {
	return nil
}
