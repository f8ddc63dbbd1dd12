// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hrng-env reads the board temperature sensor sitting next to the
// entropy hardware and, optionally, stores it as a source health report.
package main // import "github.com/go-hrng/hrng/cmd/hrng-env"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-daq/smbus"
	"github.com/go-hrng/hrng/qualdb"
)

const (
	lm75RegTemp = 0x00
)

func main() {
	var (
		bus  = flag.Int("bus", 1, "SMBus id of the temperature sensor")
		addr = flag.Int("addr", 0x48, "SMBus address of the temperature sensor")
		src  = flag.String("src", "", "entropy source to attach the report to")
		db   = flag.String("db", "hrng", "health database name")
	)

	log.SetPrefix("hrng-env: ")
	log.SetFlags(0)

	flag.Parse()

	temp, err := readTemp(*bus, uint8(*addr))
	if err != nil {
		log.Fatalf("could not read temperature: %+v", err)
	}
	log.Printf("temperature: %.2f C", temp)

	if *src == "" {
		return
	}

	err = report(*db, *src, temp)
	if err != nil {
		log.Fatalf("could not store health report: %+v", err)
	}
}

func readTemp(bus int, addr uint8) (float64, error) {
	conn, err := smbus.Open(bus, addr)
	if err != nil {
		return 0, fmt.Errorf("could not open SMBus %d: %w", bus, err)
	}
	defer conn.Close()

	raw, err := conn.ReadWord(addr, lm75RegTemp)
	if err != nil {
		return 0, fmt.Errorf("could not read sensor 0x%x: %w", addr, err)
	}

	// the LM75 sends the temperature MSB first.
	return float64(int16(raw<<8|raw>>8)) / 256, nil
}

func report(dbname, src string, temp float64) error {
	db, err := qualdb.Open(dbname)
	if err != nil {
		return fmt.Errorf("could not open health db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.AddHealthReport(ctx, qualdb.HealthReport{
		Source: src,
		Temp:   temp,
	})
	if err != nil {
		return fmt.Errorf("could not add health report: %w", err)
	}
	return nil
}
