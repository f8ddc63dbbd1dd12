// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-hrng/hrng/hwrng"
)

type fakeSource struct {
	name string
	word int
}

func (src *fakeSource) Name() string  { return src.name }
func (src *fakeSource) Quality() int  { return 0 }
func (src *fakeSource) WordSize() int { return src.word }

func (src *fakeSource) Read(p []byte, wait bool) (int, error) {
	n := len(p) / src.word * src.word
	for i := 0; i < n; i++ {
		p[i] = byte(i)
	}
	return n, nil
}

func TestAcquire(t *testing.T) {
	reg := hwrng.NewRegistry()
	err := reg.Register(&fakeSource{name: "rng0", word: 4})
	if err != nil {
		t.Fatalf("could not register source: %+v", err)
	}

	buf := new(bytes.Buffer)
	err = acquire(reg, buf, 64)
	if err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	if got, want := buf.Len(), 64; got != want {
		t.Fatalf("invalid output size: got=%d, want=%d", got, want)
	}
}

func TestRun(t *testing.T) {
	tmpdir, err := os.MkdirTemp("", "hrng-daq-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpdir)

	reg := hwrng.NewRegistry()
	err = reg.Register(&fakeSource{name: "rng0", word: 8})
	if err != nil {
		t.Fatalf("could not register source: %+v", err)
	}

	err = run(reg, tmpdir, 42, 128)
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}

	fi, err := os.Stat(filepath.Join(tmpdir, "hrng_000042.raw"))
	if err != nil {
		t.Fatalf("could not stat output file: %+v", err)
	}
	if got, want := fi.Size(), int64(128); got != want {
		t.Fatalf("invalid output size: got=%d, want=%d", got, want)
	}
}
