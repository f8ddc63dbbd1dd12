// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tx4939 drives the on-chip random number generator of the Toshiba
// TX4939 SoC.
//
// The generator produces three 64-bit words per generation cycle; a cycle
// takes 90 bus-clock cycles, after which the ST bit of the RCSR register
// clears and the ROR output registers hold fresh entropy.
package tx4939 // import "github.com/go-hrng/hrng/tx4939"

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-hrng/hrng/hwrng"
	"github.com/go-hrng/hrng/internal/iomem"
)

const (
	base = 0xff1ff000 // SoC configuration page holding the RNG block
	span = 0x1000

	regRCSR = 0x500 // control and status
	regROR  = 0x518 // output registers, 3 x 64b

	rcsrINTE = 0x00000008 // interrupt enable
	rcsrRST  = 0x00000004 // block reset
	rcsrFIN  = 0x00000002 // generation finished
	rcsrST   = 0x00000001 // start/busy

	numROR   = 3
	wordSize = 8

	// one generation takes 90 bus-clock cycles, ~5 ns each.
	genLatency = 450 * time.Nanosecond
)

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

type reg64 struct {
	r func() uint64
	w func(v uint64)
}

func newReg64(dev *Device, rw rwer, offset int64) reg64 {
	return reg64{
		r: func() uint64 {
			return dev.readU64(rw, offset)
		},
		w: func(v uint64) {
			dev.writeU64(rw, offset, v)
		},
	}
}

type config struct {
	name    string
	quality int
}

// Option configures a TX4939 RNG device.
type Option func(*config)

// WithName overrides the default source name.
func WithName(name string) Option {
	return func(cfg *config) {
		cfg.name = name
	}
}

// WithQuality declares the entropy density of the source, in bits of entropy
// per 1024 bits of output.
func WithQuality(q int) Option {
	return func(cfg *config) {
		cfg.quality = q
	}
}

// Device represents the TX4939 RNG block.
type Device struct {
	cfg config

	mem struct {
		fd  *os.File
		rng *iomem.Handle
	}

	regs struct {
		rcsr reg64
		ror  [numROR]reg64
	}

	poll hwrng.Poller

	err  error
	xbuf [8]byte
}

// New maps the RNG register block of devmem (usually /dev/mem).
func New(devmem string, opts ...Option) (*Device, error) {
	mem, err := os.OpenFile(devmem, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("tx4939: could not open %q: %w", devmem, err)
	}
	defer func() {
		if err != nil {
			_ = mem.Close()
		}
	}()

	dev := &Device{
		cfg: config{name: "tx4939-rng"},
	}
	for _, opt := range opts {
		opt(&dev.cfg)
	}
	dev.mem.fd = mem

	dev.mem.rng, err = iomem.Map(mem, base, span)
	if err != nil {
		return nil, fmt.Errorf("tx4939: could not map RNG registers: %w", err)
	}

	dev.bind(dev.mem.rng)
	dev.bindPoll()

	return dev, nil
}

func (dev *Device) bind(rw rwer) {
	dev.regs.rcsr = newReg64(dev, rw, regRCSR)
	for i := range dev.regs.ror {
		dev.regs.ror[i] = newReg64(dev, rw, regROR+int64(i)*wordSize)
	}
}

func (dev *Device) bindPoll() {
	dev.poll = hwrng.Poller{
		Word:     wordSize,
		Interval: genLatency,
		Fill:     dev.fill,
	}
}

// readU64 loads the full 64-bit register with a single ReadAt, so the value
// is observed whole with respect to the reading context.
func (dev *Device) readU64(r io.ReaderAt, off int64) uint64 {
	if dev.err != nil {
		return 0
	}
	_, dev.err = r.ReadAt(dev.xbuf[:8], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("tx4939: could not read register 0x%x: %w", off, dev.err)
		return 0
	}
	return binary.LittleEndian.Uint64(dev.xbuf[:8])
}

func (dev *Device) writeU64(w io.WriterAt, off int64, v uint64) {
	if dev.err != nil {
		return
	}
	binary.LittleEndian.PutUint64(dev.xbuf[:8], v)
	_, dev.err = w.WriteAt(dev.xbuf[:8], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("tx4939: could not write register 0x%x: %w", off, dev.err)
		return
	}
}

func (dev *Device) Name() string  { return dev.cfg.name }
func (dev *Device) Quality() int  { return dev.cfg.quality }
func (dev *Device) WordSize() int { return wordSize }

// Init resets and starts the generator, then flushes its warm-up output.
func (dev *Device) Init() error {
	dev.regs.rcsr.w(rcsrRST)
	dev.regs.rcsr.w(0)
	dev.regs.rcsr.w(rcsrST)
	if dev.err != nil {
		return fmt.Errorf("tx4939: could not start RNG: %w", dev.err)
	}

	// The quality of the first two generations after a reset is
	// insufficient (datasheet); read and discard them.
	var flush [numROR * wordSize]byte
	for i := 0; i < 2; i++ {
		n, err := dev.Read(flush[:], true)
		if err != nil {
			return fmt.Errorf("tx4939: could not flush warm-up generation %d: %w", i+1, err)
		}
		if n == 0 {
			return fmt.Errorf("tx4939: device not ready during warm-up generation %d", i+1)
		}
	}
	return nil
}

// Read copies up to len(p) bytes of entropy into p.
func (dev *Device) Read(p []byte, wait bool) (int, error) {
	return dev.poll.Read(p, wait)
}

func (dev *Device) fill(dst []byte, max int) (int, error) {
	if v := dev.regs.rcsr.r(); v&rcsrST != 0 || dev.err != nil {
		// generation still in flight.
		return 0, dev.err
	}

	n := numROR
	if n > max {
		n = max
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(dst[i*wordSize:], dev.regs.ror[i].r())
	}

	// start the next generation.
	dev.regs.rcsr.w(rcsrST)
	if dev.err != nil {
		return 0, dev.err
	}
	return n, nil
}

func (dev *Device) Close() error {
	if dev.mem.fd == nil {
		return nil
	}

	var (
		errRng = dev.mem.rng.Close()
		errMem = dev.mem.fd.Close()
	)
	dev.mem.fd = nil
	dev.mem.rng = nil

	if errMem != nil {
		return fmt.Errorf("tx4939: could not close device mem file: %w", errMem)
	}
	if errRng != nil {
		return fmt.Errorf("tx4939: could not unmap RNG registers: %w", errRng)
	}
	return nil
}

var (
	_ hwrng.Source = (*Device)(nil)
	_ hwrng.Initer = (*Device)(nil)
)
