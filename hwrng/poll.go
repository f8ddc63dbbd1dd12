// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hwrng

import (
	"time"
)

// DefaultRetries is the poll budget applied when a Poller does not declare
// its own. It bounds the worst-case latency of a waiting read to
// budget x interval.
const DefaultRetries = 20

// Poller drives the poll-and-drain read shared by polled entropy sources.
//
// Fill is the chip-specific attempt: it drains up to max words of immediately
// available entropy into dst and reports the number of words copied, zero
// meaning "nothing ready now". Fill owns the chip's re-arm and error-clear
// actions; an error from Fill reports a register-space failure, not an empty
// device.
type Poller struct {
	Word     int           // hardware word size, in bytes
	Retries  int           // poll budget; DefaultRetries when 0
	Interval time.Duration // pause between two polls

	Fill func(dst []byte, max int) (int, error)
}

// Read implements the read entry point contract: it rejects buffers smaller
// than one word before any hardware access, tries Fill once, and, when wait
// is set and nothing was ready, re-tries at fixed intervals until the retry
// budget runs out. The returned count is a whole multiple of Word; zero
// means no entropy is available right now.
func (p *Poller) Read(dst []byte, wait bool) (int, error) {
	if len(dst) < p.Word {
		return 0, ErrShortBuffer
	}
	max := len(dst) / p.Word

	n, err := p.Fill(dst, max)
	if err != nil {
		return n * p.Word, err
	}

	retries := p.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	for wait && n == 0 && retries > 0 {
		retries--
		time.Sleep(p.Interval)
		n, err = p.Fill(dst, max)
		if err != nil {
			return n * p.Word, err
		}
	}

	return n * p.Word, nil
}
