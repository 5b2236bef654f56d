// Package index keeps a queryable Postgres record of every handled fault,
// one row per report, paginated by keyset cursor.
package index

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/faultline-labs/faultline/config"
	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/errdata/errfields"
	"github.com/faultline-labs/faultline/report"
	"github.com/faultline-labs/faultline/safe"
	"github.com/faultline-labs/faultline/trace"
)

var ErrNoDSN = errors.New("no dsn supplied")

// Record is one indexed fault report row. The full report text lives in the
// archive; the index keeps only what queries filter and sort on.
type Record struct {
	bun.BaseModel `bun:"table:fault_reports"`

	ID         string    `bun:"id,pk"`
	Service    string    `bun:"service"`
	Version    string    `bun:"version"`
	Class      string    `bun:"class"`
	Kind       string    `bun:"kind"`
	Message    string    `bun:"message"`
	Source     string    `bun:"source"`
	Line       int       `bun:"line"`
	OccurredAt time.Time `bun:"occurred_at"`
}

// KeySort orders listings newest first, with the ID breaking ties.
func (r Record) KeySort() []KeySort {
	return []KeySort{
		{Key: "occurred_at", Sort: SortDescending},
		{Key: "id", Sort: SortDescending},
	}
}

func (r Record) CursorValues() []string {
	return []string{r.OccurredAt.UTC().Format(time.RFC3339Nano), r.ID}
}

func (r Record) DecodeCursorValues(values []string) ([]any, error) {
	if len(values) != 2 {
		return nil, trace.WrapError(ErrCursorValues)
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, values[0])
	if err != nil {
		return nil, errclass.Mark(trace.WrapError(err), errclass.Persistent)
	}
	return []any{occurredAt, values[1]}, nil
}

func (r Record) Unwrap() Record {
	return r
}

// Index writes and queries the fault report table.
type Index struct {
	db *bun.DB
}

// New wraps an existing bun database handle.
func New(db *bun.DB) *Index {
	return &Index{db: db}
}

type Config struct {
	DSN string `koanf:"dsn"`
}

// NewFromConfig opens the Postgres index described by the configuration
// section at cfgPath. The connection pool dials lazily, so construction
// succeeds without a reachable database.
func NewFromConfig(cfg *config.Configuration, cfgPath string) (*Index, error) {
	settings := Config{}
	if err := cfg.Unmarshal(cfgPath, &settings); err != nil {
		return nil, trace.WrapError(err)
	}
	if settings.DSN == "" {
		return nil, trace.WrapError(ErrNoDSN)
	}

	// pgdriver panics on a malformed DSN
	var db *bun.DB
	err := safe.Run(func() error {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(settings.DSN)))
		db = bun.NewDB(sqldb, pgdialect.New())
		return nil
	})
	if err != nil {
		return nil, err
	}

	return New(db), nil
}

// EnsureSchema creates the report table and its keyset index when missing.
func (x *Index) EnsureSchema(ctx context.Context) error {
	if _, err := x.db.NewCreateTable().Model((*Record)(nil)).IfNotExists().Exec(ctx); err != nil {
		return errclass.Mark(trace.WrapError(err), errclass.Transient)
	}

	_, err := x.db.NewCreateIndex().
		Model((*Record)(nil)).
		IfNotExists().
		Index("fault_reports_occurred_at_id_idx").
		Column("occurred_at", "id").
		Exec(ctx)
	if err != nil {
		return errclass.Mark(trace.WrapError(err), errclass.Transient)
	}
	return nil
}

// Ship inserts the report's index row. Redelivered reports are recognized by
// ID and skipped, so shipping is idempotent.
func (x *Index) Ship(ctx context.Context, rep report.Report) (err error) {
	defer func() {
		err = errfields.Add(err, slog.String("report_id", rep.ID))
	}()

	record := recordFromReport(rep)
	_, err = x.db.NewInsert().
		Model(&record).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return errclass.Mark(trace.WrapError(err), errclass.Transient)
	}
	return nil
}

// ListOptions filter and window a listing.
type ListOptions struct {
	Service string
	Kind    string
	Limit   int
	Cursor  Cursor
}

func (o ListOptions) GetLimit() int {
	return o.Limit
}

func (o ListOptions) GetCursor() Cursor {
	return o.Cursor
}

// List returns one page of records, newest first.
func (x *Index) List(ctx context.Context, opts ListOptions) ([]*Record, Cursor, error) {
	query := x.db.NewSelect().Model((*Record)(nil))
	if opts.Service != "" {
		query = query.Where("service = ?", opts.Service)
	}
	if opts.Kind != "" {
		query = query.Where("kind = ?", opts.Kind)
	}

	return Paginate[Record, Record](ctx, query, opts)
}

func recordFromReport(rep report.Report) Record {
	return Record{
		ID:         rep.ID,
		Service:    rep.Service,
		Version:    rep.Version,
		Class:      rep.Class,
		Kind:       rep.Fault.Kind,
		Message:    rep.Fault.Message,
		Source:     rep.Fault.File,
		Line:       rep.Fault.Line,
		OccurredAt: rep.OccurredAt,
	}
}
