// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rnga drives the RNGA block of Freescale i.MX application
// processors.
//
// The RNGA accumulates entropy in an output FIFO; the status register
// reports how many 32-bit words are available and whether the internal
// oscillators are alive.
package rnga // import "github.com/go-hrng/hrng/rnga"

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
	base = 0x10004000 // AIPS peripheral page holding the RNGA block
	span = 0x1000

	regControl = 0x00
	regStatus  = 0x04
	regEntropy = 0x08
	regFIFO    = 0x0c
	regMode    = 0x10

	ctrlSleep         = 0x00000010
	ctrlClearInt      = 0x00000008
	ctrlMaskInts      = 0x00000004
	ctrlHighAssurance = 0x00000002
	ctrlGo            = 0x00000001

	statusOscDead   = 0x80000000
	statusErrorInt  = 0x00000008
	statusLevelMask = 0x0000ff00
	statusLevelOff  = 8

	wordSize = 4

	// FIFO refill latency when the level drops to zero.
	fifoLatency = 10 * time.Microsecond
)

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

type reg32 struct {
	r func() uint32
	w func(v uint32)
}

func newReg32(dev *Device, rw rwer, offset int64) reg32 {
	return reg32{
		r: func() uint32 {
			return dev.readU32(rw, offset)
		},
		w: func(v uint32) {
			dev.writeU32(rw, offset, v)
		},
	}
}

// Clock gates the peripheral clock feeding the RNGA block.
type Clock interface {
	Enable() error
	Disable()
}

type nopClock struct{}

func (nopClock) Enable() error { return nil }
func (nopClock) Disable()      {}

type config struct {
	name    string
	quality int
	clk     Clock
}

// Option configures an RNGA device.
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

// WithClock gates the device on clk.
func WithClock(clk Clock) Option {
	return func(cfg *config) {
		cfg.clk = clk
	}
}

// Device represents the RNGA block.
type Device struct {
	cfg config

	mem struct {
		fd  *os.File
		rng *iomem.Handle
	}

	regs struct {
		ctrl   reg32
		status reg32
		fifo   reg32
	}

	poll hwrng.Poller

	err  error
	xbuf [4]byte
}

// New maps the RNGA register block of devmem (usually /dev/mem).
func New(devmem string, opts ...Option) (*Device, error) {
	mem, err := os.OpenFile(devmem, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("rnga: could not open %q: %w", devmem, err)
	}
	defer func() {
		if err != nil {
			_ = mem.Close()
		}
	}()

	dev := &Device{
		cfg: config{name: "mxc-rnga", clk: nopClock{}},
	}
	for _, opt := range opts {
		opt(&dev.cfg)
	}
	dev.mem.fd = mem

	dev.mem.rng, err = iomem.Map(mem, base, span)
	if err != nil {
		return nil, fmt.Errorf("rnga: could not map RNGA registers: %w", err)
	}

	dev.bind(dev.mem.rng)
	dev.bindPoll()

	return dev, nil
}

func (dev *Device) bind(rw rwer) {
	dev.regs.ctrl = newReg32(dev, rw, regControl)
	dev.regs.status = newReg32(dev, rw, regStatus)
	dev.regs.fifo = newReg32(dev, rw, regFIFO)
}

func (dev *Device) bindPoll() {
	dev.poll = hwrng.Poller{
		Word:     wordSize,
		Interval: fifoLatency,
		Fill:     dev.fill,
	}
}

func (dev *Device) readU32(r io.ReaderAt, off int64) uint32 {
	if dev.err != nil {
		return 0
	}
	_, dev.err = r.ReadAt(dev.xbuf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("rnga: could not read register 0x%x: %w", off, dev.err)
		return 0
	}
	return binary.LittleEndian.Uint32(dev.xbuf[:4])
}

func (dev *Device) writeU32(w io.WriterAt, off int64, v uint32) {
	if dev.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(dev.xbuf[:4], v)
	_, dev.err = w.WriteAt(dev.xbuf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("rnga: could not write register 0x%x: %w", off, dev.err)
		return
	}
}

func (dev *Device) Name() string  { return dev.cfg.name }
func (dev *Device) Quality() int  { return dev.cfg.quality }
func (dev *Device) WordSize() int { return wordSize }

// Init wakes the block, checks its oscillator and starts accumulation.
func (dev *Device) Init() error {
	err := dev.cfg.clk.Enable()
	if err != nil {
		return fmt.Errorf("rnga: could not enable clock: %w", err)
	}

	ctrl := dev.regs.ctrl.r()
	dev.regs.ctrl.w(ctrl &^ ctrlSleep)

	// an RNGA whose oscillator died produces no entropy, ever.
	if osc := dev.regs.status.r(); osc&statusOscDead != 0 {
		dev.cfg.clk.Disable()
		return fmt.Errorf("rnga: oscillator is dead")
	}
	if dev.err != nil {
		dev.cfg.clk.Disable()
		return fmt.Errorf("rnga: could not wake device: %w", dev.err)
	}

	ctrl = dev.regs.ctrl.r()
	dev.regs.ctrl.w(ctrl | ctrlGo)
	if dev.err != nil {
		dev.cfg.clk.Disable()
		return fmt.Errorf("rnga: could not start device: %w", dev.err)
	}
	return nil
}

// Cleanup stops accumulation and gates the clock off.
func (dev *Device) Cleanup() {
	ctrl := dev.regs.ctrl.r()
	dev.regs.ctrl.w(ctrl &^ ctrlGo)
	dev.cfg.clk.Disable()
}

// Read copies up to len(p) bytes of entropy into p.
func (dev *Device) Read(p []byte, wait bool) (int, error) {
	return dev.poll.Read(p, wait)
}

func (dev *Device) fill(dst []byte, max int) (int, error) {
	level := int(dev.regs.status.r()&statusLevelMask) >> statusLevelOff
	if dev.err != nil {
		return 0, dev.err
	}

	n := level
	if n > max {
		n = max
	}
	for i := 0; i < n; i++ {
		v := dev.regs.fifo.r()
		if status := dev.regs.status.r(); status&statusErrorInt != 0 {
			// FIFO under-run: the word just read is suspect.
			// Acknowledge the fault and keep what came before it.
			ctrl := dev.regs.ctrl.r()
			dev.regs.ctrl.w(ctrl | ctrlClearInt)
			return i, dev.err
		}
		if dev.err != nil {
			return 0, dev.err
		}
		binary.LittleEndian.PutUint32(dst[i*wordSize:], v)
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
		return fmt.Errorf("rnga: could not close device mem file: %w", errMem)
	}
	if errRng != nil {
		return fmt.Errorf("rnga: could not unmap RNGA registers: %w", errRng)
	}
	return nil
}

var (
	_ hwrng.Source    = (*Device)(nil)
	_ hwrng.Initer    = (*Device)(nil)
	_ hwrng.Cleanuper = (*Device)(nil)
)
