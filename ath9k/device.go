// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ath9k harvests entropy from the baseband ADC of Atheros AR9300
// class Wi-Fi chips.
//
// The chip has no dedicated RNG block. Routing the receive chain observation
// bus to the ADC test register exposes thermal noise samples, which are
// filtered and packed into 32-bit words.
package ath9k // import "github.com/go-hrng/hrng/ath9k"

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
	span = 0x10000 // PHY register window of the chip BAR

	regPhyTest    = 0xa360
	regPhyTestCtl = 0xa364
	regPhyADC     = 0xa36c

	phyTestBBBObsSel    = 0x00780000
	phyTestBBBObsSelOff = 19
	phyTestRxObsSelBit5 = 0x00800000

	phyTestCtlRxObsSel    = 0x0000001c
	phyTestCtlRxObsSelOff = 2

	wordSize = 4

	// ADC noise is gathered opportunistically; back off a little between
	// scans of an unproductive sampler.
	sampleLatency = 10 * time.Microsecond

	// measured entropy density of the ADC samples, in bits per 1024 bits
	// of output.
	adcQuality = 320
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

type config struct {
	name    string
	quality int
}

// Option configures an ath9k noise source.
type Option func(*config)

// WithName overrides the default source name.
func WithName(name string) Option {
	return func(cfg *config) {
		cfg.name = name
	}
}

// WithQuality overrides the default entropy density, in bits of entropy per
// 1024 bits of output.
func WithQuality(q int) Option {
	return func(cfg *config) {
		cfg.quality = q
	}
}

// Device samples the baseband ADC of an AR9300 class chip.
type Device struct {
	cfg config

	mem struct {
		fd  *os.File
		bar *iomem.Handle
	}

	regs struct {
		test reg32
		ctl  reg32
		adc  reg32
	}

	poll hwrng.Poller

	// last ADC half-sample seen, across calls. Consecutive identical
	// samples carry no entropy and must be rejected.
	rngLast uint32

	err  error
	xbuf [4]byte
}

// New maps the PHY register window of the chip whose BAR starts at bar in
// devmem (usually /dev/mem).
func New(devmem string, bar int64, opts ...Option) (*Device, error) {
	mem, err := os.OpenFile(devmem, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("ath9k: could not open %q: %w", devmem, err)
	}
	defer func() {
		if err != nil {
			_ = mem.Close()
		}
	}()

	dev := &Device{
		cfg: config{name: "ath9k-rng", quality: adcQuality},
	}
	for _, opt := range opts {
		opt(&dev.cfg)
	}
	dev.mem.fd = mem

	dev.mem.bar, err = iomem.Map(mem, bar, span)
	if err != nil {
		return nil, fmt.Errorf("ath9k: could not map PHY registers: %w", err)
	}

	dev.bind(dev.mem.bar)
	dev.bindPoll()

	return dev, nil
}

func (dev *Device) bind(rw rwer) {
	dev.regs.test = newReg32(dev, rw, regPhyTest)
	dev.regs.ctl = newReg32(dev, rw, regPhyTestCtl)
	dev.regs.adc = newReg32(dev, rw, regPhyADC)
}

func (dev *Device) bindPoll() {
	dev.poll = hwrng.Poller{
		Word:     wordSize,
		Interval: sampleLatency,
		Fill:     dev.fill,
	}
}

func (dev *Device) readU32(r io.ReaderAt, off int64) uint32 {
	if dev.err != nil {
		return 0
	}
	_, dev.err = r.ReadAt(dev.xbuf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("ath9k: could not read register 0x%x: %w", off, dev.err)
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
		dev.err = fmt.Errorf("ath9k: could not write register 0x%x: %w", off, dev.err)
		return
	}
}

func (dev *Device) rmwField(reg reg32, mask, off, v uint32) {
	reg.w(reg.r()&^mask | v<<off&mask)
}

func (dev *Device) clrBit(reg reg32, mask uint32) {
	reg.w(reg.r() &^ mask)
}

func (dev *Device) Name() string  { return dev.cfg.name }
func (dev *Device) Quality() int  { return dev.cfg.quality }
func (dev *Device) WordSize() int { return wordSize }

// Read copies up to len(p) bytes of entropy into p.
func (dev *Device) Read(p []byte, wait bool) (int, error) {
	return dev.poll.Read(p, wait)
}

func (dev *Device) fill(dst []byte, max int) (int, error) {
	// route the rx observation bus to the ADC test register. The chip
	// may reprogram these fields between calls, so route on every scan.
	dev.rmwField(dev.regs.test, phyTestBBBObsSel, phyTestBBBObsSelOff, 1)
	dev.clrBit(dev.regs.test, phyTestRxObsSelBit5)
	dev.rmwField(dev.regs.ctl, phyTestCtlRxObsSel, phyTestCtlRxObsSelOff, 0)

	var (
		last = dev.rngLast
		j    = 0
	)
	for i := 0; i < max; i++ {
		v1 := dev.regs.adc.r() & 0xffff
		v2 := dev.regs.adc.r() & 0xffff

		// reject stuck, saturated or repeated samples.
		if v1 != 0 && v2 != 0 && last != v1 && v1 != v2 &&
			v1 != 0xffff && v2 != 0xffff {
			binary.LittleEndian.PutUint32(dst[j*wordSize:], v1<<16|v2)
			j++
		}
		last = v2
	}
	dev.rngLast = last

	if dev.err != nil {
		return 0, dev.err
	}
	return j, nil
}

func (dev *Device) Close() error {
	if dev.mem.fd == nil {
		return nil
	}

	var (
		errBar = dev.mem.bar.Close()
		errMem = dev.mem.fd.Close()
	)
	dev.mem.fd = nil
	dev.mem.bar = nil

	if errMem != nil {
		return fmt.Errorf("ath9k: could not close device mem file: %w", errMem)
	}
	if errBar != nil {
		return fmt.Errorf("ath9k: could not unmap PHY registers: %w", errBar)
	}
	return nil
}

var _ hwrng.Source = (*Device)(nil)
