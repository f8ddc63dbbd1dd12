// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tx4939

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/go-hrng/hrng/hwrng"
)

type fakeRCSR struct {
	rs []uint64 // successive reads; last repeats
	i  int
	ws []uint64 // recorded writes
}

func (f *fakeRCSR) read() uint64 {
	i := f.i
	f.i++
	if i >= len(f.rs) {
		i = len(f.rs) - 1
	}
	return f.rs[i]
}

func (f *fakeRCSR) write(v uint64) { f.ws = append(f.ws, v) }

func newFakeDevice(rcsr *fakeRCSR, ror [numROR]uint64) *Device {
	dev := &Device{
		cfg: config{name: "tx4939-rng"},
	}
	dev.bindPoll()

	dev.regs.rcsr = reg64{r: rcsr.read, w: rcsr.write}
	for i := range dev.regs.ror {
		v := ror[i]
		dev.regs.ror[i] = reg64{
			r: func() uint64 { return v },
			w: func(uint64) {},
		}
	}
	return dev
}

func TestRead(t *testing.T) {
	var (
		rcsr = &fakeRCSR{rs: []uint64{0}}
		ror  = [numROR]uint64{0xdeadbeefcafe0001, 0x0123456789abcdef, 0xfeedface00c0ffee}
		dev  = newFakeDevice(rcsr, ror)
	)

	buf := make([]byte, 32)
	n, err := dev.Read(buf, false)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := n, numROR*wordSize; got != want {
		t.Fatalf("invalid count: got=%d, want=%d", got, want)
	}

	for i, want := range ror {
		got := binary.LittleEndian.Uint64(buf[i*wordSize:])
		if got != want {
			t.Fatalf("invalid word %d: got=0x%x, want=0x%x", i, got, want)
		}
	}

	// a drained generation must be restarted.
	if got, want := rcsr.ws, []uint64{rcsrST}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid RCSR writes: got=%v, want=%v", got, want)
	}
}

func TestReadPartial(t *testing.T) {
	var (
		rcsr = &fakeRCSR{rs: []uint64{0}}
		ror  = [numROR]uint64{0x1111111111111111, 0x2222222222222222, 0x3333333333333333}
		dev  = newFakeDevice(rcsr, ror)
	)

	buf := make([]byte, wordSize)
	n, err := dev.Read(buf, false)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := n, wordSize; got != want {
		t.Fatalf("invalid count: got=%d, want=%d", got, want)
	}
	if got, want := binary.LittleEndian.Uint64(buf), ror[0]; got != want {
		t.Fatalf("invalid word: got=0x%x, want=0x%x", got, want)
	}
}

func TestReadShortBuffer(t *testing.T) {
	var (
		rcsr = &fakeRCSR{rs: []uint64{0}}
		dev  = newFakeDevice(rcsr, [numROR]uint64{})
	)

	n, err := dev.Read(make([]byte, wordSize-1), true)
	if !errors.Is(err, hwrng.ErrShortBuffer) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, hwrng.ErrShortBuffer)
	}
	if n != 0 {
		t.Fatalf("invalid count: got=%d, want=0", n)
	}
	if got, want := rcsr.i, 0; got != want {
		t.Fatalf("short buffer touched hardware: %d accesses", got)
	}
}

func TestReadBusyNoWait(t *testing.T) {
	var (
		rcsr = &fakeRCSR{rs: []uint64{rcsrST}}
		dev  = newFakeDevice(rcsr, [numROR]uint64{})
	)

	n, err := dev.Read(make([]byte, 32), false)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if n != 0 {
		t.Fatalf("invalid count: got=%d, want=0", n)
	}
	if got, want := rcsr.i, 1; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
	if len(rcsr.ws) != 0 {
		t.Fatalf("busy read wrote to RCSR: %v", rcsr.ws)
	}
}

func TestReadWaitBudget(t *testing.T) {
	var (
		rcsr = &fakeRCSR{rs: []uint64{rcsrST}}
		dev  = newFakeDevice(rcsr, [numROR]uint64{})
	)

	n, err := dev.Read(make([]byte, 32), true)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if n != 0 {
		t.Fatalf("invalid count: got=%d, want=0", n)
	}
	if got, want := rcsr.i, hwrng.DefaultRetries+1; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
}

func TestReadWaitReady(t *testing.T) {
	var (
		rcsr = &fakeRCSR{rs: []uint64{rcsrST, rcsrST, 0}}
		ror  = [numROR]uint64{0xaaaa, 0xbbbb, 0xcccc}
		dev  = newFakeDevice(rcsr, ror)
	)

	n, err := dev.Read(make([]byte, 32), true)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := n, numROR*wordSize; got != want {
		t.Fatalf("invalid count: got=%d, want=%d", got, want)
	}
	if got, want := rcsr.i, 3; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
}

func TestInit(t *testing.T) {
	var (
		rcsr = &fakeRCSR{rs: []uint64{0}}
		dev  = newFakeDevice(rcsr, [numROR]uint64{1, 2, 3})
	)

	err := dev.Init()
	if err != nil {
		t.Fatalf("could not init device: %+v", err)
	}

	// reset sequence, then one restart per discarded warm-up generation.
	want := []uint64{rcsrRST, 0, rcsrST, rcsrST, rcsrST}
	if got := rcsr.ws; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid RCSR writes: got=%v, want=%v", got, want)
	}
}

func TestInitNotReady(t *testing.T) {
	var (
		rcsr = &fakeRCSR{rs: []uint64{rcsrST}}
		dev  = newFakeDevice(rcsr, [numROR]uint64{})
	)

	err := dev.Init()
	if err == nil {
		t.Fatalf("expected an init error")
	}

	want := []uint64{rcsrRST, 0, rcsrST}
	if got := rcsr.ws; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid RCSR writes: got=%v, want=%v", got, want)
	}
}
