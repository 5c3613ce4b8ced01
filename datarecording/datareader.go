package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/fatih/structs"
)

// QueryParams selects the rows a query returns. Where and OrderBy are SQL
// fragments without their keywords, for example "Time > ?" and "Time DESC".
type QueryParams struct {
	Where   string
	Args    []any
	Limit   int
	Offset  int
	OrderBy string
}

func (p QueryParams) clauses(withPaging bool) string {
	var b strings.Builder

	if p.Where != "" {
		b.WriteString(" WHERE " + p.Where)
	}

	if !withPaging {
		return b.String()
	}

	if p.OrderBy != "" {
		b.WriteString(" ORDER BY " + p.OrderBy)
	}

	if p.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", p.Limit)
		if p.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", p.Offset)
		}
	}

	return b.String()
}

// A Reader reads back a trace database written by a DataRecorder. Rows are
// decoded into the same structs the tables were created from.
type Reader struct {
	db *sql.DB
}

// NewReader opens the trace database at path read-only.
func NewReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open trace %s: %w", path, err)
	}

	return &Reader{db: db}, nil
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Tables returns the names of the tables in the database in lexical order.
func (r *Reader) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		tables = append(tables, name)
	}

	return tables, rows.Err()
}

// Count returns the number of rows of the table that match p.Where.
func (r *Reader) Count(ctx context.Context, table string, p QueryParams) (int, error) {
	if err := r.mustHaveTable(ctx, table); err != nil {
		return 0, err
	}

	var n int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+table+p.clauses(false), p.Args...).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}

// ExecInfo returns the execution properties in the order they were recorded.
func (r *Reader) ExecInfo(ctx context.Context) ([]ExecInfo, error) {
	info, _, err := Query[ExecInfo](ctx, r, ExecTableName,
		QueryParams{OrderBy: "rowid"})

	return info, err
}

func (r *Reader) mustHaveTable(ctx context.Context, table string) error {
	var name string

	err := r.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		table).Scan(&name)
	if err == sql.ErrNoRows {
		return fmt.Errorf("table %s not found", table)
	}

	return err
}

// Query returns the rows of table selected by p, decoded as T, along with the
// number of rows matching p.Where regardless of p.Limit. T must be the entry
// type the table was created with.
func Query[T any](
	ctx context.Context,
	r *Reader,
	table string,
	p QueryParams,
) ([]T, int, error) {
	var zero T
	if err := checkStructFields(zero); err != nil {
		return nil, 0, err
	}

	total, err := r.Count(ctx, table, p)
	if err != nil {
		return nil, 0, err
	}

	columns := strings.Join(structs.Names(zero), ", ")

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+columns+" FROM "+table+p.clauses(true), p.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []T

	for rows.Next() {
		var entry T

		v := reflect.ValueOf(&entry).Elem()
		targets := make([]any, v.NumField())
		for i := range targets {
			targets[i] = v.Field(i).Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, 0, err
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
