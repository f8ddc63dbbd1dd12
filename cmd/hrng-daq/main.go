// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hrng-daq drives entropy acquisition in stand-alone mode.
package main // import "github.com/go-hrng/hrng/cmd/hrng-daq"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-hrng/hrng/hwrng"
	"github.com/go-hrng/hrng/internal/drivers"
)

func main() {
	var (
		runnbr = flag.Int("run", -1, "run number")
		odir   = flag.String("dir", ".", "output directory")
		nbytes = flag.Int64("n", 1024*1024, "number of bytes to acquire (-1: unbounded)")
		devs   = flag.String("dev", "", "comma-separated list of source specs (e.g. tx4939:/dev/mem,ath9k:/dev/mem:0xf0000000)")
	)

	log.SetPrefix("hrng-daq: ")
	log.SetFlags(0)

	flag.Parse()

	log.Printf("run=%d n=%d dev=%q", *runnbr, *nbytes, *devs)

	switch {
	case *runnbr < 0:
		log.Fatalf("invalid run number value")
	case *devs == "":
		log.Fatalf("missing source specs (-dev)")
	}

	reg := hwrng.NewRegistry()
	for _, spec := range strings.Split(*devs, ",") {
		src, err := drivers.New(spec)
		if err != nil {
			log.Fatalf("could not create source %q: %+v", spec, err)
		}
		err = reg.Register(src)
		if err != nil {
			log.Fatalf("could not register source %q: %+v", spec, err)
		}
	}

	err := run(reg, *odir, *runnbr, *nbytes)
	if err != nil {
		log.Fatalf("could not run hrng-daq: %+v", err)
	}
}

func run(reg *hwrng.Registry, odir string, runnbr int, n int64) error {
	oname := filepath.Join(odir, fmt.Sprintf("hrng_%06d.raw", runnbr))
	f, err := os.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output file %q: %w", oname, err)
	}
	defer f.Close()

	err = acquire(reg, f, n)
	if err != nil {
		return fmt.Errorf("could not acquire entropy: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close output file %q: %w", oname, err)
	}
	return nil
}

func acquire(reg *hwrng.Registry, w io.Writer, n int64) error {
	r := reg.Reader()
	switch {
	case n < 0:
		_, err := io.Copy(w, r)
		return err
	default:
		_, err := io.CopyN(w, r, n)
		return err
	}
}
