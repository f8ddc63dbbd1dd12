// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hrng-ctl is an interactive client for the hrng-svc control link.
//
// Usage:
//
//	$> hrng-ctl -addr localhost:9999
//	hrng> sources
//	mxc-rnga
//	ath9k-rng
//	hrng> quality mxc-rnga
//	700
//	hrng> read mxc-rnga 16
//	8e1f0b6f2a4cd3a1f00dbeef8badf00d
//	hrng> quit
package main // import "github.com/go-hrng/hrng/cmd/hrng-ctl"

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"strings"

	"github.com/go-hrng/hrng/hwrng"
	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", "localhost:9999", "hrng-svc [address]:port to dial")

	log.SetPrefix("hrng-ctl: ")
	log.SetFlags(0)

	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("could not dial hrng-svc %q: %+v", *addr, err)
	}
	defer conn.Close()

	repl(conn)
}

func repl(conn net.Conn) {
	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	var (
		enc = json.NewEncoder(conn)
		dec = json.NewDecoder(conn)
	)

	for {
		line, err := term.Prompt("hrng> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return
			}
			log.Fatalf("could not read line: %+v", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		toks := strings.Fields(line)
		err = enc.Encode(hwrng.Request{Name: toks[0], Args: toks[1:]})
		if err != nil {
			log.Fatalf("could not send %q command: %+v", toks[0], err)
		}

		var rep hwrng.Reply
		err = dec.Decode(&rep)
		if err != nil {
			log.Fatalf("could not read %q reply: %+v", toks[0], err)
		}

		switch {
		case rep.Err != "":
			log.Printf("error: %s", rep.Err)
		case rep.Data != "":
			fmt.Println(rep.Data)
		case len(rep.List) > 0:
			for _, v := range rep.List {
				fmt.Println(v)
			}
		default:
			fmt.Println(rep.Msg)
		}

		if toks[0] == "quit" {
			return
		}
	}
}
