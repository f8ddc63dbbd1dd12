// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package drivers builds entropy sources from command-line specs.
package drivers // import "github.com/go-hrng/hrng/internal/drivers"

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-hrng/hrng/ath9k"
	"github.com/go-hrng/hrng/hwrng"
	"github.com/go-hrng/hrng/rnga"
	"github.com/go-hrng/hrng/tx4939"
)

// New builds the source described by spec.
//
// Specs are of the form DRIVER:DEVMEM[:ARG], e.g.:
//
//	tx4939:/dev/mem
//	rnga:/dev/mem
//	ath9k:/dev/mem:0xf0000000   (ARG is the chip BAR address)
func New(spec string) (hwrng.Source, error) {
	toks := strings.Split(spec, ":")
	if len(toks) < 2 {
		return nil, fmt.Errorf("drivers: invalid source spec %q", spec)
	}
	switch drv, devmem := toks[0], toks[1]; drv {
	case "tx4939":
		return tx4939.New(devmem)
	case "rnga":
		return rnga.New(devmem)
	case "ath9k":
		if len(toks) < 3 {
			return nil, fmt.Errorf("drivers: missing BAR address in spec %q", spec)
		}
		bar, err := strconv.ParseInt(toks[2], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("drivers: invalid BAR address in spec %q: %w", spec, err)
		}
		return ath9k.New(devmem, bar)
	default:
		return nil, fmt.Errorf("drivers: unknown driver %q", drv)
	}
}
