package dataset

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const DefaultTableName = "blood_panel_training"

var columns = []string{"wbc", "rbc", "hgb", "plt", "neut", "lymph", "mono", "eo", "baso", "disease"}

// Querier is satisfied by *pgxpool.Pool and *pgx.Conn.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Writer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresSource reads the training table with one query per Load.
type PostgresSource struct {
	DB    Querier
	Table string
}

func (s PostgresSource) tableName() string {
	if s.Table == "" {
		return DefaultTableName
	}
	return s.Table
}

func (s PostgresSource) String() string {
	return "postgres:" + s.tableName()
}

func (s PostgresSource) Load(ctx context.Context) (Table, error) {
	query := fmt.Sprintf(
		"SELECT wbc, rbc, hgb, plt, neut, lymph, mono, eo, baso, disease FROM %s ORDER BY id",
		pgx.Identifier{s.tableName()}.Sanitize(),
	)
	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "query training table")
	}
	defer rows.Close()

	table := make(Table, 0, 256)
	for rows.Next() {
		var row TrainingRow
		f := &row.Features
		if err := rows.Scan(&f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &f[7], &f[8], &row.Label); err != nil {
			return nil, errors.Wrap(err, "scan training row")
		}
		table = append(table, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate training table")
	}
	if len(table) == 0 {
		return nil, errors.Errorf("training table %s has no rows", s.tableName())
	}
	return table, nil
}

func EnsureSchema(ctx context.Context, db Writer, table string) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id      BIGSERIAL PRIMARY KEY,
	wbc     DOUBLE PRECISION NOT NULL,
	rbc     DOUBLE PRECISION NOT NULL,
	hgb     DOUBLE PRECISION NOT NULL,
	plt     DOUBLE PRECISION NOT NULL,
	neut    DOUBLE PRECISION NOT NULL,
	lymph   DOUBLE PRECISION NOT NULL,
	mono    DOUBLE PRECISION NOT NULL,
	eo      DOUBLE PRECISION NOT NULL,
	baso    DOUBLE PRECISION NOT NULL,
	disease INTEGER NOT NULL CHECK (disease >= 0)
)`, pgx.Identifier{table}.Sanitize())

	if _, err := db.Exec(ctx, ddl); err != nil {
		return errors.Wrapf(err, "create table %s", table)
	}
	return nil
}

// Import appends the rows with COPY and returns how many were written.
func Import(ctx context.Context, db Writer, table string, t Table) (int64, error) {
	src := make([][]any, len(t))
	for i, row := range t {
		values := make([]any, 0, len(columns))
		for _, f := range row.Features {
			values = append(values, f)
		}
		src[i] = append(values, row.Label)
	}

	n, err := db.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(src))
	if err != nil {
		return n, errors.Wrapf(err, "copy into %s", table)
	}
	return n, nil
}
