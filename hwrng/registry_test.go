// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hwrng

import (
	"errors"
	"io"
	"reflect"
	"testing"
)

type fakeSource struct {
	name    string
	quality int
	word    int
	avail   []int // words produced by successive reads; last repeats
	reads   int

	initErr error
	inits   int
	cleans  int
}

func (src *fakeSource) Name() string  { return src.name }
func (src *fakeSource) Quality() int  { return src.quality }
func (src *fakeSource) WordSize() int { return src.word }

func (src *fakeSource) Init() error {
	src.inits++
	return src.initErr
}

func (src *fakeSource) Cleanup() { src.cleans++ }

func (src *fakeSource) Read(p []byte, wait bool) (int, error) {
	if len(p) < src.word {
		return 0, ErrShortBuffer
	}
	i := src.reads
	src.reads++
	if i >= len(src.avail) {
		i = len(src.avail) - 1
	}
	n := src.avail[i]
	if max := len(p) / src.word; n > max {
		n = max
	}
	return n * src.word, nil
}

var (
	_ Source    = (*fakeSource)(nil)
	_ Initer    = (*fakeSource)(nil)
	_ Cleanuper = (*fakeSource)(nil)
)

func TestRegistryRanking(t *testing.T) {
	reg := NewRegistry()

	for _, src := range []*fakeSource{
		{name: "noise0", quality: 320, word: 4, avail: []int{1}},
		{name: "rng0", quality: 0, word: 8, avail: []int{3}},
		{name: "rnga0", quality: 700, word: 4, avail: []int{5}},
	} {
		err := reg.Register(src)
		if err != nil {
			t.Fatalf("could not register %q: %+v", src.name, err)
		}
	}

	if got, want := reg.Sources(), []string{"rnga0", "noise0", "rng0"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid ranking: got=%v, want=%v", got, want)
	}

	if got, want := reg.Best().Name(), "rnga0"; got != want {
		t.Fatalf("invalid best source: got=%q, want=%q", got, want)
	}
}

func TestRegistryInitFailure(t *testing.T) {
	reg := NewRegistry()

	src := &fakeSource{
		name: "dead0", quality: 1000, word: 4, avail: []int{1},
		initErr: errors.New("oscillator dead"),
	}
	err := reg.Register(src)
	if err == nil {
		t.Fatalf("expected a registration error")
	}
	if got, want := src.inits, 1; got != want {
		t.Fatalf("invalid init count: got=%d, want=%d", got, want)
	}

	// the failed source must not be reachable.
	if got := reg.Best(); got != nil {
		t.Fatalf("dead source is reachable: %q", got.Name())
	}
	_, err = reg.Read(make([]byte, 16), false)
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("invalid read error: got=%+v, want=%+v", err, ErrNoSource)
	}
	if got, want := src.reads, 0; got != want {
		t.Fatalf("dead source was read %d times", got)
	}
}

func TestRegistryDuplicate(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(&fakeSource{name: "rng0", word: 4, avail: []int{1}})
	if err != nil {
		t.Fatalf("could not register: %+v", err)
	}
	err = reg.Register(&fakeSource{name: "rng0", word: 4, avail: []int{1}})
	if err == nil {
		t.Fatalf("expected a duplicate-registration error")
	}
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry()

	src := &fakeSource{name: "rng0", word: 4, avail: []int{1}}
	err := reg.Register(src)
	if err != nil {
		t.Fatalf("could not register: %+v", err)
	}

	err = reg.Unregister("rng0")
	if err != nil {
		t.Fatalf("could not unregister: %+v", err)
	}
	if got, want := src.cleans, 1; got != want {
		t.Fatalf("invalid cleanup count: got=%d, want=%d", got, want)
	}

	err = reg.Unregister("rng0")
	if err == nil {
		t.Fatalf("expected an unregister error")
	}
}

func TestRegistryFallback(t *testing.T) {
	reg := NewRegistry()

	var (
		empty = &fakeSource{name: "empty0", quality: 900, word: 4, avail: []int{0}}
		full  = &fakeSource{name: "full0", quality: 100, word: 4, avail: []int{2}}
	)
	for _, src := range []*fakeSource{empty, full} {
		err := reg.Register(src)
		if err != nil {
			t.Fatalf("could not register %q: %+v", src.name, err)
		}
	}

	n, err := reg.Read(make([]byte, 16), false)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := n, 8; got != want {
		t.Fatalf("invalid count: got=%d, want=%d", got, want)
	}
	if empty.reads != 1 || full.reads != 1 {
		t.Fatalf("invalid dispatch: empty=%d full=%d", empty.reads, full.reads)
	}
}

func TestRegistryShortBuffer(t *testing.T) {
	reg := NewRegistry()

	wide := &fakeSource{name: "rng0", word: 8, avail: []int{1}}
	err := reg.Register(wide)
	if err != nil {
		t.Fatalf("could not register: %+v", err)
	}

	n, err := reg.Read(make([]byte, 4), true)
	if !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("invalid read error: got=%+v, want=%+v", err, ErrShortBuffer)
	}
	if got, want := n, 0; got != want {
		t.Fatalf("invalid count: got=%d, want=%d", got, want)
	}
	if got, want := wide.reads, 0; got != want {
		t.Fatalf("wide source was read %d times", got)
	}

	// a narrower source restores service for the same buffer.
	narrow := &fakeSource{name: "rng1", word: 4, avail: []int{1}}
	err = reg.Register(narrow)
	if err != nil {
		t.Fatalf("could not register: %+v", err)
	}

	n, err = reg.Read(make([]byte, 4), false)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := n, 4; got != want {
		t.Fatalf("invalid count: got=%d, want=%d", got, want)
	}
}

func TestRegistryReader(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(&fakeSource{name: "rng0", word: 8, avail: []int{0, 3}})
	if err != nil {
		t.Fatalf("could not register: %+v", err)
	}

	r := reg.Reader()
	buf := make([]byte, 24)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := n, 24; got != want {
		t.Fatalf("invalid count: got=%d, want=%d", got, want)
	}
}
