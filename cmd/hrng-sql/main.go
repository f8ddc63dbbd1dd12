// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hrng-sql inspects the health database of the entropy sources.
package main // import "github.com/go-hrng/hrng/cmd/hrng-sql"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-hrng/hrng/qualdb"
	_ "github.com/go-sql-driver/mysql"
)

const (
	dbname = "hrng"
)

func main() {
	log.SetPrefix("hrng-sql: ")
	log.SetFlags(0)

	var (
		src = flag.String("src", "", "entropy source to inspect")
	)

	flag.Parse()

	db, err := qualdb.Open(dbname)
	if err != nil {
		log.Fatalf("could not open health db: %+v", err)
	}
	defer db.Close()

	err = doQuery(db, *src)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(db *qualdb.DB, src string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if src == "" {
		names, err := db.Sources(ctx)
		if err != nil {
			return fmt.Errorf("could not get sources: %w", err)
		}
		log.Printf("sources: %d", len(names))
		for _, name := range names {
			log.Printf(">>> %s", name)
		}
		return nil
	}

	quality, err := db.LastQuality(ctx, src)
	if err != nil {
		return fmt.Errorf("could not get last quality for %q: %w", src, err)
	}
	log.Printf("source:  %s", src)
	log.Printf("quality: %d", quality)

	rows, err := db.QueryContext(
		ctx,
		"SELECT quality, words, faults, temp FROM health WHERE source=? ORDER BY datetime DESC LIMIT 10",
		src,
	)
	if err != nil {
		return fmt.Errorf("could not get health history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			qual   int
			words  int64
			faults int64
			temp   float64
		)
		err = rows.Scan(&qual, &words, &faults, &temp)
		if err != nil {
			return fmt.Errorf("could not scan health report: %w", err)
		}
		log.Printf(">>> quality=%4d words=%10d faults=%3d temp=%5.1fC",
			qual, words, faults, temp,
		)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("could not scan health history: %w", err)
	}

	return nil
}
