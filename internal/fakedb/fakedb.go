// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb provides an in-memory database/sql driver for tests.
//
// Queries return the rows scripted with Run; statements executed while
// inside RunExec are recorded for inspection.
package fakedb // import "github.com/go-hrng/hrng/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
)

var state struct {
	mu   sync.Mutex
	rows Rows
	exec *Exec
}

// Run scripts the rows every query returns while f runs.
func Run(ctx context.Context, rows Rows, f func(ctx context.Context) error) error {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.rows = rows

	return f(ctx)
}

// RunExec records into ex every statement executed while f runs.
func RunExec(ctx context.Context, ex *Exec, f func(ctx context.Context) error) error {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.exec = ex
	defer func() { state.exec = nil }()

	return f(ctx)
}

// Exec collects the statements executed under RunExec.
type Exec struct {
	Queries []string
	Args    [][]driver.Value
}

func init() {
	sql.Register("fakedb", &Driver{})
}

type Driver struct{}

func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct{}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{query: query}, nil
}

func (c *Conn) Close() error { return nil }

func (c *Conn) Begin() (driver.Tx, error) {
	panic("not implemented")
}

type Stmt struct {
	query string
}

func (stmt *Stmt) Close() error { return nil }

// NumInput returns -1 so the sql package does not check argument counts.
func (stmt *Stmt) NumInput() int { return -1 }

func (stmt *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	if state.exec != nil {
		state.exec.Queries = append(state.exec.Queries, stmt.query)
		state.exec.Args = append(state.exec.Args, append([]driver.Value(nil), args...))
	}
	return driver.RowsAffected(1), nil
}

func (stmt *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	rows := state.rows
	return &rows, nil
}

// Rows scripts the result set of a query.
type Rows struct {
	Names  []string
	Values [][]driver.Value
}

func (rows *Rows) Columns() []string { return rows.Names }

func (rows *Rows) Close() error { return nil }

func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Stmt   = (*Stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
