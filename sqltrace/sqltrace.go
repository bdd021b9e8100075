// Package sqltrace routes database/sql calls through a tracer.Interceptor.
//
//	db := sqltrace.Wrap(sqlDB, tracer.New())
//	rows, err := db.QueryContext(ctx, "SELECT id FROM users WHERE active = ?", 1)
package sqltrace

import (
	"context"
	"database/sql"

	"github.com/dbsmedya/qtrace/tracer"
)

// DB wraps sql.DB so every statement goes through an Interceptor.
// Methods that are not overridden fall through to the embedded *sql.DB.
type DB struct {
	*sql.DB
	tracer *tracer.Interceptor
}

// Wrap returns db with its statements routed through t.
func Wrap(db *sql.DB, t *tracer.Interceptor) *DB {
	return &DB{
		DB:     db,
		tracer: t,
	}
}

// Tracer returns the interceptor statements are routed through.
func (db *DB) Tracer() *tracer.Interceptor {
	return db.tracer
}

// ExecContext executes a statement that returns no rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return tracer.Do(db.tracer, query, func() (sql.Result, error) {
		return db.DB.ExecContext(ctx, query, args...)
	})
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return tracer.Do(db.tracer, query, func() (*sql.Rows, error) {
		return db.DB.QueryContext(ctx, query, args...)
	})
}

// QueryRowContext executes a query expected to return at most one row.
// Errors are deferred to Scan by database/sql, so the call is always recorded.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	row, _ := tracer.Do(db.tracer, query, func() (*sql.Row, error) {
		return db.DB.QueryRowContext(ctx, query, args...), nil
	})
	return row
}

// PrepareContext prepares a statement whose executions are traced.
func (db *DB) PrepareContext(ctx context.Context, query string) (*Stmt, error) {
	stmt, err := db.DB.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Stmt{Stmt: stmt, query: query, tracer: db.tracer}, nil
}

// Stmt is a prepared statement whose executions go through an
// Interceptor under the text it was prepared with.
type Stmt struct {
	*sql.Stmt
	query  string
	tracer *tracer.Interceptor
}

// ExecContext executes the prepared statement.
func (s *Stmt) ExecContext(ctx context.Context, args ...interface{}) (sql.Result, error) {
	return tracer.Do(s.tracer, s.query, func() (sql.Result, error) {
		return s.Stmt.ExecContext(ctx, args...)
	})
}

// QueryContext executes the prepared query.
func (s *Stmt) QueryContext(ctx context.Context, args ...interface{}) (*sql.Rows, error) {
	return tracer.Do(s.tracer, s.query, func() (*sql.Rows, error) {
		return s.Stmt.QueryContext(ctx, args...)
	})
}
