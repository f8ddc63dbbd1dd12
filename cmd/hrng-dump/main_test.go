// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDump(t *testing.T) {
	tmpdir, err := os.MkdirTemp("", "hrng-dump-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpdir)

	fname := filepath.Join(tmpdir, "hrng.raw")
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i)
	}
	err = os.WriteFile(fname, raw, 0644)
	if err != nil {
		t.Fatal(err)
	}

	out := new(strings.Builder)
	err = process(out, fname)
	if err != nil {
		t.Fatalf("could not process %q: %+v", fname, err)
	}

	want := `=== hrng.raw ===
00000000  00010203 04050607 08090a0b 0c0d0e0f
00000010  10111213
bytes: 20
`
	if got := out.String(); got != want {
		t.Fatalf("invalid output:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestDumpMissingFile(t *testing.T) {
	err := process(new(strings.Builder), "/no/such/file.raw")
	if err == nil {
		t.Fatalf("expected an error")
	}
}
