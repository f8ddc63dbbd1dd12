// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// hrng-dump displays the content of raw entropy files.
//
// Usage: hrng-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> hrng-dump ./hrng_000117.raw
//	=== hrng_000117.raw ===
//	00000000  8e1f0b6f 2a4cd3a1 f00dbeef 8badf00d
//	00000010  00c0ffee 1badb002 deadbeef cafefade
//	[...]
//	bytes: 1048576
package main // import "github.com/go-hrng/hrng/cmd/hrng-dump"

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

func main() {
	log.SetPrefix("hrng-dump: ")
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Printf(`hrng-dump displays the content of raw entropy files.

Usage: hrng-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> hrng-dump ./hrng_000117.raw
 === hrng_000117.raw ===
 00000000  8e1f0b6f 2a4cd3a1 f00dbeef 8badf00d
 00000010  00c0ffee 1badb002 deadbeef cafefade
 [...]
 bytes: 1048576

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input entropy file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	fmt.Fprintf(w, "=== %s ===\n", filepath.Base(fname))

	var (
		r   = bufio.NewReader(f)
		buf = make([]byte, 16)
		n   int64
	)
	for {
		m, err := io.ReadFull(r, buf)
		if m > 0 {
			dump(w, n, buf[:m])
			n += int64(m)
		}
		switch {
		case err == nil:
			// next line.
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			fmt.Fprintf(w, "bytes: %d\n", n)
			return nil
		default:
			return fmt.Errorf("could not read %q: %w", fname, err)
		}
	}
}

func dump(w io.Writer, off int64, p []byte) {
	fmt.Fprintf(w, "%08x ", off)
	for i, v := range p {
		if i%4 == 0 {
			fmt.Fprintf(w, " ")
		}
		fmt.Fprintf(w, "%02x", v)
	}
	fmt.Fprintf(w, "\n")
}
