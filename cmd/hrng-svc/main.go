// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hrng-svc exposes hardware entropy sources over a JSON control
// link.
package main // import "github.com/go-hrng/hrng/cmd/hrng-svc"

import (
	"flag"
	"log"
	"strings"

	"github.com/go-hrng/hrng/hwrng"
	"github.com/go-hrng/hrng/internal/drivers"
)

func main() {
	var (
		addr = flag.String("addr", ":9999", "[ip]:port to listen on")
		devs = flag.String("dev", "", "comma-separated list of source specs (e.g. tx4939:/dev/mem,ath9k:/dev/mem:0xf0000000)")
	)

	log.SetPrefix("hrng-svc: ")
	log.SetFlags(0)

	flag.Parse()

	if *devs == "" {
		log.Fatalf("missing source specs (-dev)")
	}

	reg := hwrng.NewRegistry()
	for _, spec := range strings.Split(*devs, ",") {
		src, err := drivers.New(spec)
		if err != nil {
			log.Fatalf("could not create source %q: %+v", spec, err)
		}
		err = reg.Register(src)
		if err != nil {
			log.Fatalf("could not register source %q: %+v", spec, err)
		}
	}

	err := hwrng.Serve(*addr, reg)
	if err != nil {
		log.Fatalf("could not create hrng-svc service: %+v", err)
	}
}
