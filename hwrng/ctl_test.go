// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hwrng

import (
	"encoding/hex"
	"encoding/json"
	"net"
	"strconv"
	"testing"
)

func TestCtlServer(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(&fakeSource{
		name: "rng0", quality: 320, word: 4, avail: []int{2},
	})
	if err != nil {
		t.Fatalf("could not register source: %+v", err)
	}

	srv, err := newCtlServer(":0", reg)
	if err != nil {
		t.Fatalf("could not create control server: %+v", err)
	}
	defer srv.close()
	go func() { _ = srv.serve() }()

	conn, err := net.Dial("tcp", srv.addr())
	if err != nil {
		t.Fatalf("could not dial control server: %+v", err)
	}
	defer conn.Close()

	var (
		dec = json.NewDecoder(conn)
		enc = json.NewEncoder(conn)
	)

	send := func(req Request) Reply {
		t.Helper()
		err := enc.Encode(req)
		if err != nil {
			t.Fatalf("could not send %q request: %+v", req.Name, err)
		}
		var rep Reply
		err = dec.Decode(&rep)
		if err != nil {
			t.Fatalf("could not read %q reply: %+v", req.Name, err)
		}
		return rep
	}

	rep := send(Request{Name: "sources"})
	if rep.Err != "" {
		t.Fatalf("sources failed: %v", rep.Err)
	}
	if len(rep.List) != 1 || rep.List[0] != "rng0" {
		t.Fatalf("invalid sources list: %v", rep.List)
	}

	rep = send(Request{Name: "quality", Args: []string{"rng0"}})
	if rep.Err != "" {
		t.Fatalf("quality failed: %v", rep.Err)
	}
	if got, want := rep.Msg, strconv.Itoa(320); got != want {
		t.Fatalf("invalid quality: got=%q, want=%q", got, want)
	}

	rep = send(Request{Name: "read", Args: []string{"rng0", "16"}})
	if rep.Err != "" {
		t.Fatalf("read failed: %v", rep.Err)
	}
	raw, err := hex.DecodeString(rep.Data)
	if err != nil {
		t.Fatalf("could not decode entropy payload: %+v", err)
	}
	if got, want := len(raw), 8; got != want {
		t.Fatalf("invalid payload size: got=%d, want=%d", got, want)
	}

	rep = send(Request{Name: "read", Args: []string{"rng1", "16"}})
	if rep.Err == "" {
		t.Fatalf("expected an unknown-source error")
	}

	rep = send(Request{Name: "bogus"})
	if rep.Err == "" {
		t.Fatalf("expected an unknown-command error")
	}

	rep = send(Request{Name: "quit"})
	if rep.Err != "" {
		t.Fatalf("quit failed: %v", rep.Err)
	}
}
