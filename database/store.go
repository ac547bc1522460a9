package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/sei-platform/seibackend/config"
)

// ErrNoFields is returned by dynamic updates when none of the submitted columns is
// on the table's allow-list.
var ErrNoFields = errors.New("no updatable fields provided")

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store issues parameterized queries built with squirrel. Every read goes through
// FetchRows, so callers always receive a plain ordered slice of Row regardless of the
// driver's native value types.
type Store struct {
	db     Querier
	sb     sq.StatementBuilderType
	driver string
}

func NewStore(db Querier, driver string) *Store {
	var format sq.PlaceholderFormat = sq.Question
	if driver == config.DriverPostgres {
		format = sq.Dollar
	}
	return &Store{db: db, sb: sq.StatementBuilder.PlaceholderFormat(format), driver: driver}
}

// Row is one result record keyed by column name. Driver-specific representations are
// normalized on the way in: []byte becomes string, everything else is kept.
type Row map[string]interface{}

// FetchRows runs a select and returns every row, in order. An empty result is an empty
// slice, never nil.
func (s *Store) FetchRows(ctx context.Context, b sq.Sqlizer) ([]Row, error) {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	out := []Row{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// FetchOne returns the first row of the select or sql.ErrNoRows.
func (s *Store) FetchOne(ctx context.Context, b sq.SelectBuilder) (Row, error) {
	rows, err := s.FetchRows(ctx, b.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return rows[0], nil
}

// insertReturningID runs an insert and returns the generated id.
func (s *Store) insertReturningID(ctx context.Context, b sq.InsertBuilder) (int64, error) {
	sqlStr, args, err := b.Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// execAffecting runs b and returns sql.ErrNoRows when nothing was touched.
func (s *Store) execAffecting(ctx context.Context, b sq.Sqlizer) error {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL: %w", err)
	}
	result, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// filterAllowed keeps only allow-listed columns. Blank strings become NULL.
func filterAllowed(fields map[string]interface{}, allowed map[string]bool) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if !allowed[k] {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			v = nil
		}
		if s, ok := v.(*string); ok && (s == nil || strings.TrimSpace(*s) == "") {
			v = nil
		}
		out[k] = v
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return t
	}
}

func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// StringPtr returns nil for NULL columns.
func (r Row) StringPtr(key string) *string {
	if r[key] == nil {
		return nil
	}
	s := r.String(key)
	return &s
}

func (r Row) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func (r Row) Uint(key string) uint {
	n := r.Int64(key)
	if n < 0 {
		return 0
	}
	return uint(n)
}

// UintPtr returns nil for NULL columns.
func (r Row) UintPtr(key string) *uint {
	if r[key] == nil {
		return nil
	}
	n := r.Uint(key)
	return &n
}

// Bool accepts native booleans (postgres) and 0/1 integers (sqlite).
func (r Row) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (r Row) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
