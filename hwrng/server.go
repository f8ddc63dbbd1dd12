// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hwrng

import (
	"fmt"

	"github.com/go-daq/tdaq"
)

// Server exposes a source registry as a TDAQ process: run-control commands
// drive the registry and the "/rng" end-point streams entropy frames.
type Server struct {
	reg *Registry

	frame int // bytes per streamed frame
	n     int // frames streamed since start
	data  chan []byte
}

// NewServer wraps reg in a TDAQ server streaming frames of frame bytes.
func NewServer(reg *Registry, frame int) *Server {
	if frame <= 0 {
		frame = 1024
	}
	return &Server{reg: reg, frame: frame}
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	for _, name := range srv.reg.Sources() {
		src, err := srv.reg.Source(name)
		if err != nil {
			return fmt.Errorf("hwrng: could not inspect source %q: %w", name, err)
		}
		ctx.Msg.Infof("source %q: quality=%d word=%d",
			src.Name(), src.Quality(), src.WordSize(),
		)
	}
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	srv.data = make(chan []byte, 64)
	srv.n = 0
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.data = make(chan []byte, 64)
	srv.n = 0
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command... -> frames=%d", srv.n)
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

// RNG feeds the "/rng" output end-point.
func (srv *Server) RNG(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.data:
		dst.Body = data
	}
	return nil
}

// Run drains the registry into the stream channel until run-control stops
// the process.
func (srv *Server) Run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
			raw := make([]byte, srv.frame)
			n, err := srv.reg.Read(raw, true)
			if err != nil {
				ctx.Msg.Errorf("could not read entropy: %+v", err)
				return fmt.Errorf("hwrng: could not read entropy: %w", err)
			}
			if n == 0 {
				continue
			}
			select {
			case srv.data <- raw[:n]:
				srv.n++
			default:
				// consumer not keeping up: drop the frame.
			}
		}
	}
}
