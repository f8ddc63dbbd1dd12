// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qualdb records and retrieves the health history of hardware
// entropy sources.
//
// Each health report carries the source name, its declared entropy density
// and the fault counters accumulated since the previous report.
package qualdb // import "github.com/go-hrng/hrng/qualdb"

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var (
	host = envOr("HRNG_DB_HOST", "localhost")
	usr  = envOr("HRNG_DB_USER", "hrng")
	pwd  = envOr("HRNG_DB_PASS", "s3cr3t")

	drvName = "mysql"
)

func envOr(name, v string) string {
	if x, ok := os.LookupEnv(name); ok {
		return x
	}
	return v
}

// HealthReport is one observation of a running entropy source.
type HealthReport struct {
	Source  string  // source name
	Quality int     // declared entropy density, in bits per 1024 bits
	Words   int64   // words produced since the last report
	Faults  int64   // faults observed since the last report
	Temp    float64 // board temperature, in Celsius
}

// DB exposes convenience methods to store and retrieve source health
// reports.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the health database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("qualdb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("qualdb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("qualdb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// Sources returns the names of the sources with at least one health report.
func (db *DB) Sources(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var names []string
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT DISTINCT source FROM health ORDER BY source",
	)
	if err != nil {
		return nil, fmt.Errorf("qualdb: could not query sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("qualdb: could not get source name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("qualdb: could not scan db for sources: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("qualdb: context error while retrieving sources: %w", err)
	}

	return names, nil
}

// LastQuality returns the entropy density of source as of its most recent
// health report.
func (db *DB) LastQuality(ctx context.Context, source string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var quality int
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT quality FROM health WHERE source=? ORDER BY datetime DESC LIMIT 1",
		source,
	)
	if err != nil {
		return quality, fmt.Errorf("qualdb: could not query quality: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&quality)
		if err != nil {
			return quality, fmt.Errorf("qualdb: could not get quality value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return quality, fmt.Errorf("qualdb: could not scan db for quality: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return quality, fmt.Errorf("qualdb: context error while retrieving quality: %w", err)
	}

	return quality, nil
}

// AddHealthReport stores a new health report.
func (db *DB) AddHealthReport(ctx context.Context, rep HealthReport) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		"INSERT INTO health (source, quality, words, faults, temp, datetime) VALUES (?, ?, ?, ?, ?, NOW())",
		rep.Source, rep.Quality, rep.Words, rep.Faults, rep.Temp,
	)
	if err != nil {
		return fmt.Errorf("qualdb: could not store health report for %q: %w", rep.Source, err)
	}

	return nil
}
