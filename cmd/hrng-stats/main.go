// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// hrng-stats computes byte-level statistics of raw entropy files.
//
// Usage: hrng-stats FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> hrng-stats ./hrng_000117.raw
//	=== hrng_000117.raw ===
//	bytes:   1048576
//	mean:    127.52
//	std-dev: 73.90
//	entropy: 7.9998 bits/byte
package main // import "github.com/go-hrng/hrng/cmd/hrng-stats"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"

	"go-hep.org/x/hep/hbook"
)

func main() {
	log.SetPrefix("hrng-stats: ")
	log.SetFlags(0)

	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatalf("missing path to input entropy file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname)
		if err != nil {
			log.Fatalf("could not analyze file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	h, counts, err := analyze(f)
	if err != nil {
		return fmt.Errorf("could not analyze %q: %w", fname, err)
	}

	fmt.Fprintf(w, "=== %s ===\n", filepath.Base(fname))
	fmt.Fprintf(w, "bytes:   %d\n", int64(h.Entries()))
	fmt.Fprintf(w, "mean:    %.2f\n", h.XMean())
	fmt.Fprintf(w, "std-dev: %.2f\n", h.XStdDev())
	fmt.Fprintf(w, "entropy: %.4f bits/byte\n", entropy(counts))
	return nil
}

func analyze(r io.Reader) (*hbook.H1D, [256]int64, error) {
	var (
		h      = hbook.NewH1D(256, 0, 256)
		counts [256]int64
		buf    = make([]byte, 64*1024)
	)
	for {
		n, err := r.Read(buf)
		for _, v := range buf[:n] {
			h.Fill(float64(v), 1)
			counts[v]++
		}
		switch {
		case err == nil:
			// next chunk.
		case errors.Is(err, io.EOF):
			return h, counts, nil
		default:
			return nil, counts, err
		}
	}
}

// entropy computes the Shannon entropy of the byte distribution, in bits
// per byte.
func entropy(counts [256]int64) float64 {
	var n int64
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return 0
	}

	var e float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(n)
		e -= p * math.Log2(p)
	}
	return e
}
