// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hwrng

import (
	"errors"
	"testing"
	"time"
)

// fakeChip scripts successive Fill outcomes: avail[i] words are reported on
// the i-th attempt (the last element repeats).
type fakeChip struct {
	word  int
	avail []int
	calls int
	err   error
}

func (chip *fakeChip) fill(dst []byte, max int) (int, error) {
	i := chip.calls
	chip.calls++
	if i >= len(chip.avail) {
		i = len(chip.avail) - 1
	}
	if chip.err != nil {
		return 0, chip.err
	}
	n := chip.avail[i]
	if n > max {
		n = max
	}
	for j := 0; j < n*chip.word; j++ {
		dst[j] = byte(j)
	}
	return n, nil
}

func (chip *fakeChip) poller() *Poller {
	return &Poller{
		Word:     chip.word,
		Interval: 1 * time.Microsecond,
		Fill:     chip.fill,
	}
}

func TestPollerShortBuffer(t *testing.T) {
	chip := &fakeChip{word: 8, avail: []int{3}}
	p := chip.poller()

	for _, n := range []int{0, 1, 7} {
		buf := make([]byte, n)
		got, err := p.Read(buf, true)
		if !errors.Is(err, ErrShortBuffer) {
			t.Fatalf("cap=%d: invalid error: got=%+v, want=%+v", n, err, ErrShortBuffer)
		}
		if got != 0 {
			t.Fatalf("cap=%d: invalid count: got=%d, want=0", n, got)
		}
	}

	if chip.calls != 0 {
		t.Fatalf("short buffer touched hardware: %d accesses", chip.calls)
	}
}

func TestPollerNotReadyNoWait(t *testing.T) {
	chip := &fakeChip{word: 4, avail: []int{0}}
	p := chip.poller()

	n, err := p.Read(make([]byte, 16), false)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if n != 0 {
		t.Fatalf("invalid count: got=%d, want=0", n)
	}
	if got, want := chip.calls, 1; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
}

func TestPollerRetryBudget(t *testing.T) {
	chip := &fakeChip{word: 4, avail: []int{0}}
	p := chip.poller()

	n, err := p.Read(make([]byte, 16), true)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if n != 0 {
		t.Fatalf("invalid count: got=%d, want=0", n)
	}
	if got, want := chip.calls, DefaultRetries+1; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
}

func TestPollerCustomRetryBudget(t *testing.T) {
	chip := &fakeChip{word: 4, avail: []int{0}}
	p := chip.poller()
	p.Retries = 5

	_, err := p.Read(make([]byte, 16), true)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := chip.calls, 6; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
}

func TestPollerReadyAtOnce(t *testing.T) {
	chip := &fakeChip{word: 8, avail: []int{3}}
	p := chip.poller()

	// ready on the first check: no retry even with wait set.
	n, err := p.Read(make([]byte, 32), true)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := n, 24; got != want {
		t.Fatalf("invalid count: got=%d, want=%d", got, want)
	}
	if got, want := chip.calls, 1; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
}

func TestPollerReadyAfterRetries(t *testing.T) {
	chip := &fakeChip{word: 4, avail: []int{0, 0, 0, 2}}
	p := chip.poller()

	n, err := p.Read(make([]byte, 16), true)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := n, 8; got != want {
		t.Fatalf("invalid count: got=%d, want=%d", got, want)
	}
	if got, want := chip.calls, 4; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
}

func TestPollerWholeWords(t *testing.T) {
	// capacity 20 with 8-byte words: at most 2 words may be produced.
	chip := &fakeChip{word: 8, avail: []int{3}}
	p := chip.poller()

	n, err := p.Read(make([]byte, 20), false)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := n, 16; got != want {
		t.Fatalf("invalid count: got=%d, want=%d", got, want)
	}
	if n%p.Word != 0 {
		t.Fatalf("count %d not a multiple of the word size %d", n, p.Word)
	}
}

func TestPollerFillError(t *testing.T) {
	chip := &fakeChip{word: 4, avail: []int{1}, err: errors.New("bus fault")}
	p := chip.poller()

	_, err := p.Read(make([]byte, 16), true)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got, want := chip.calls, 1; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
}
