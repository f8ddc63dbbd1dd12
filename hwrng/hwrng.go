// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hwrng holds the framework that hardware entropy sources plug into:
// the Source contract, the bounded-retry poller shared by memory-mapped
// sources, and a registry that ranks sources and serializes read dispatch.
package hwrng // import "github.com/go-hrng/hrng/hwrng"

import (
	"errors"
)

var (
	// ErrShortBuffer is returned when a read request carries a buffer
	// smaller than one hardware word. No hardware access is performed.
	ErrShortBuffer = errors.New("hwrng: buffer smaller than one hardware word")

	// ErrNoSource is returned by the registry when no entropy source is
	// registered.
	ErrNoSource = errors.New("hwrng: no entropy source registered")
)

// Source is one hardware entropy source.
//
// A Source produces raw, unconditioned samples: no whitening is applied on
// either side of this interface.
type Source interface {
	// Name identifies the source.
	Name() string

	// Quality is the declared entropy density, in bits of entropy per
	// 1024 bits of output. Zero means unknown: the source is trusted
	// fully but ranks below sources with a declared quality.
	Quality() int

	// WordSize is the natural output unit of the hardware, in bytes.
	WordSize() int

	// Read copies at most len(p) bytes of entropy into p and returns the
	// number of bytes written, always a whole multiple of WordSize.
	// A zero count means no entropy is currently available; it is not an
	// error. With wait set, the source may block for its bounded retry
	// budget before giving up.
	Read(p []byte, wait bool) (int, error)
}

// Initer is implemented by sources that need a one-time bring-up at
// registration (wake-up, health check, start command, warm-up discard).
// A failed Init aborts the registration.
type Initer interface {
	Init() error
}

// Cleanuper is implemented by sources that need a stop/disable command at
// unregistration. Cleanup is called once.
type Cleanuper interface {
	Cleanup()
}
