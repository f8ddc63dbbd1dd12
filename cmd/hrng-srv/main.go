// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hrng-srv exposes hardware entropy sources as a TDAQ process,
// streaming entropy frames on the "/rng" end-point.
package main // import "github.com/go-hrng/hrng/cmd/hrng-srv"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-hrng/hrng/hwrng"
	"github.com/go-hrng/hrng/internal/drivers"
)

func main() {
	cmd := flags.New()

	if len(cmd.Args) == 0 {
		log.Fatalf("missing source specs (e.g. tx4939:/dev/mem)")
	}

	reg := hwrng.NewRegistry()
	for _, spec := range cmd.Args {
		src, err := drivers.New(spec)
		if err != nil {
			log.Fatalf("could not create source %q: %+v", spec, err)
		}
		err = reg.Register(src)
		if err != nil {
			log.Fatalf("could not register source %q: %+v", spec, err)
		}
	}

	dev := hwrng.NewServer(reg, 1024)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/rng", dev.RNG)

	srv.RunHandle(dev.Run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
