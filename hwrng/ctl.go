// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hwrng

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
)

// Request is a control command sent to a hwrng control server.
type Request struct {
	Name string   `json:"cmd"`
	Args []string `json:"args,omitempty"`
}

// Reply is the control server answer to a Request. Entropy payloads travel
// hex-encoded in Data.
type Reply struct {
	Msg  string   `json:"msg,omitempty"`
	Data string   `json:"data,omitempty"`
	List []string `json:"list,omitempty"`
	Err  string   `json:"err,omitempty"`
}

// ctlServer exposes a source registry over a line-delimited JSON protocol.
type ctlServer struct {
	ctl net.Listener
	msg *log.Logger
	reg *Registry
}

// Serve listens on addr and serves registry control commands until the
// listener fails.
func Serve(addr string, reg *Registry) error {
	srv, err := newCtlServer(addr, reg)
	if err != nil {
		return fmt.Errorf("hwrng: could not create control server: %w", err)
	}
	return srv.serve()
}

func newCtlServer(addr string, reg *Registry) (*ctlServer, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("hwrng: could not listen on %q: %w", addr, err)
	}
	return &ctlServer{
		ctl: ctl,
		msg: log.New(os.Stdout, "hwrng: ", 0),
		reg: reg,
	}, nil
}

func (srv *ctlServer) addr() string { return srv.ctl.Addr().String() }

func (srv *ctlServer) close() { _ = srv.ctl.Close() }

func (srv *ctlServer) serve() error {
	defer srv.close()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			return fmt.Errorf("hwrng: could not accept connection: %w", err)
		}
		go srv.handle(conn)
	}
}

func (srv *ctlServer) handle(conn net.Conn) {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	var (
		dec = json.NewDecoder(conn)
		enc = json.NewEncoder(conn)
	)

	for {
		var req Request
		err := dec.Decode(&req)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				srv.msg.Printf("could not decode command request: %+v", err)
			}
			return
		}

		switch req.Name {
		case "sources":
			_ = enc.Encode(Reply{Msg: "ok", List: srv.reg.Sources()})

		case "quality":
			srv.quality(enc, req)

		case "read":
			srv.read(enc, req)

		case "quit":
			_ = enc.Encode(Reply{Msg: "ok"})
			return

		default:
			srv.msg.Printf("unknown command %q", req.Name)
			_ = enc.Encode(Reply{Err: fmt.Sprintf("unknown command %q", req.Name)})
		}
	}
}

func (srv *ctlServer) quality(enc *json.Encoder, req Request) {
	if len(req.Args) != 1 {
		_ = enc.Encode(Reply{Err: "usage: quality SOURCE"})
		return
	}
	src, err := srv.reg.Source(req.Args[0])
	if err != nil {
		_ = enc.Encode(Reply{Err: err.Error()})
		return
	}
	_ = enc.Encode(Reply{Msg: strconv.Itoa(src.Quality())})
}

func (srv *ctlServer) read(enc *json.Encoder, req Request) {
	if len(req.Args) != 2 {
		_ = enc.Encode(Reply{Err: "usage: read SOURCE NBYTES"})
		return
	}
	src, err := srv.reg.Source(req.Args[0])
	if err != nil {
		_ = enc.Encode(Reply{Err: err.Error()})
		return
	}
	n, err := strconv.Atoi(req.Args[1])
	if err != nil || n <= 0 {
		_ = enc.Encode(Reply{Err: fmt.Sprintf("invalid byte count %q", req.Args[1])})
		return
	}

	buf := make([]byte, n)
	got, err := src.Read(buf, true)
	if err != nil {
		srv.msg.Printf("could not read from %q: %+v", src.Name(), err)
		_ = enc.Encode(Reply{Err: err.Error()})
		return
	}
	_ = enc.Encode(Reply{Msg: "ok", Data: hex.EncodeToString(buf[:got])})
}
