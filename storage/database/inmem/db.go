// Package inmem provides map-backed repositories for tests and local
// development runs without a database.
package inmem

import (
	"context"
	"database/sql"

	"github.com/voicelab/auris/core"
)

// DB satisfies core.DB with inert executors; the repositories in this package
// keep their own state and ignore the executor entirely.
type (
	DB struct{}
	tx struct{}
)

var (
	_ core.DB           = (*DB)(nil)
	_ core.DBTransactor = (*tx)(nil)
)

func NewDB() *DB { return &DB{} }

func (DB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (DB) NamedExecContext(context.Context, string, interface{}) (sql.Result, error) {
	return nil, nil
}
func (DB) GetContext(context.Context, interface{}, string, ...interface{}) error    { return nil }
func (DB) SelectContext(context.Context, interface{}, string, ...interface{}) error { return nil }
func (DB) BeginTxx(context.Context, *sql.TxOptions) (core.DBTransactor, error) {
	return tx{}, nil
}

func (tx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (tx) NamedExecContext(context.Context, string, interface{}) (sql.Result, error) {
	return nil, nil
}
func (tx) GetContext(context.Context, interface{}, string, ...interface{}) error    { return nil }
func (tx) SelectContext(context.Context, interface{}, string, ...interface{}) error { return nil }
func (tx) Commit() error                                                            { return nil }
func (tx) Rollback() error                                                          { return nil }
