// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hrng-mon starts and supervises the hrng-daq acquisition process.
//
// While an acquisition runs, hrng-mon probes the output directory at a fixed
// interval: raw files that stop growing between two probes raise an alert,
// sent by mail to the operators on duty. When a health database is
// configured, each probe cycle is also stored as a health report for the
// monitored source (words produced since the last probe, stalled files).
package main // import "github.com/go-hrng/hrng/cmd/hrng-mon"

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-hrng/hrng/qualdb"
	mail "gopkg.in/gomail.v2"
)

func main() {
	var (
		name   = flag.String("cmd", "hrng-daq", "command to run")
		addr   = flag.String("addr", ":8866", "[ip]:port to listen on")
		dir    = flag.String("dir", "", "directory to monitor")
		freq   = flag.Duration("freq", 30*time.Second, "probing interval")
		dbname = flag.String("db", "", "health database name (empty: no health reports)")
		src    = flag.String("src", "hrng", "source name attached to health reports")
		word   = flag.Int("word", 4, "hardware word size of the monitored source, in bytes")
	)

	flag.Parse()

	log.SetPrefix("hrng-mon: ")
	log.SetFlags(0)

	run(*name, *addr, *dir, *freq, *dbname, *src, *word)
}

func run(name, addr, dir string, freq time.Duration, dbname, src string, word int) {
	var db *qualdb.DB
	if dbname != "" {
		var err error
		db, err = qualdb.Open(dbname)
		if err != nil {
			log.Fatalf("could not open health db %q: %+v", dbname, err)
		}
		defer db.Close()
	}

	srv, err := newServer(addr, dir, freq, db, src, word)
	if err != nil {
		log.Fatalf("could not create server: %+v", err)
	}
	log.Printf("running hrng-mon server on %q...", addr)
	srv.run(name)
}

type server struct {
	conn net.Listener
	cmd  *exec.Cmd

	dir  string
	freq time.Duration

	db   *qualdb.DB // nil disables health reports
	src  string
	word int

	mail mailConfig
}

func newServer(addr, dir string, freq time.Duration, db *qualdb.DB, src string, word int) (*server, error) {
	conn, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %q: %w", addr, err)
	}
	return &server{
		conn: conn,
		dir:  dir,
		freq: freq,
		db:   db,
		src:  src,
		word: word,
		mail: mailConfigFromEnv(),
	}, nil
}

func (srv *server) run(name string) {
	defer srv.conn.Close()

	for {
		conn, err := srv.conn.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("could not accept connection: %+v", err)
			continue
		}
		go srv.handle(conn, name)
	}
}

func (srv *server) handle(conn net.Conn, name string) {
	defer conn.Close()
	done := make(chan int)
	defer close(done)

	for {
		var (
			req Request
			err = json.NewDecoder(conn).Decode(&req)
		)
		if err != nil {
			log.Printf("could not decode command: %+v", err)
			return
		}
		switch req.Name {
		case "start":
			log.Printf("starting command... %s %v", name, req.Args)
			srv.cmd = exec.Command(name, req.Args...)
			srv.cmd.Stdout = os.Stdout
			srv.cmd.Stderr = os.Stderr
			err = srv.cmd.Start()
			if err != nil {
				log.Printf("could not start %s %s: %+v",
					srv.cmd.Path,
					strings.Join(srv.cmd.Args, " "),
					err,
				)
				_ = json.NewEncoder(conn).Encode(Reply{Err: err.Error()})
				return
			}
			_ = json.NewEncoder(conn).Encode(Reply{Msg: "ok"})
			log.Printf("starting command... [done]")

			go srv.monitor(runOf(req.Args), done)

		case "stop":
			if srv.cmd == nil || srv.cmd.Process == nil {
				log.Printf("no command running")
				_ = json.NewEncoder(conn).Encode(Reply{Err: "no command running"})
				continue
			}
			log.Printf("stopping command...")
			// make sure the process is eventually reaped by PID-1
			go func() { _ = srv.cmd.Wait() }()
			err = srv.cmd.Process.Signal(os.Interrupt)
			if err != nil {
				log.Printf("could not stop %s %s: %+v",
					srv.cmd.Path,
					strings.Join(srv.cmd.Args, " "),
					err,
				)
				_ = json.NewEncoder(conn).Encode(Reply{Err: err.Error()})
				return
			}
			_ = json.NewEncoder(conn).Encode(Reply{Msg: "ok"})
			log.Printf("stopping command... [done]")
			return

		default:
			log.Printf("unknown command %q", req.Name)
			_ = json.NewEncoder(conn).Encode(Reply{Err: "unknown command"})
		}
	}
}

type Request struct {
	Name string   `json:"cmd"`
	Args []string `json:"args"`
}

type Reply struct {
	Msg string `json:"msg"`
	Err string `json:"err,omitempty"`
}

// runOf extracts the run number from an hrng-daq argument list.
func runOf(args []string) string {
	for i, arg := range args {
		if arg == "-run" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func (srv *server) monitor(run string, quit chan int) {
	var (
		tick = time.NewTicker(srv.freq)
		w    = newWatcher(srv.dir, run)
	)
	defer tick.Stop()

	for {
		select {
		case <-quit:
			return
		case <-tick.C:
			grown, stalled, err := w.probe()
			if err != nil {
				log.Printf("could not probe %q: %+v", srv.dir, err)
				continue
			}
			for _, fname := range stalled {
				srv.alert(w, fname)
			}
			srv.report(grown, len(stalled))
		}
	}
}

// watcher tracks the sizes of the raw files of one acquisition run.
type watcher struct {
	dir    string
	glob   string
	sizes  map[string]int64
	alerts map[string]int // number of alerts raised per file
}

func newWatcher(dir, run string) *watcher {
	return &watcher{
		dir:    dir,
		glob:   "hrng_*" + run + "*raw",
		sizes:  make(map[string]int64),
		alerts: make(map[string]int),
	}
}

// probe stats the watched files and reports how many bytes grew since the
// previous probe, together with the files that did not grow at all.
func (w *watcher) probe() (grown int64, stalled []string, err error) {
	pattern := filepath.Join(w.dir, w.glob)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return 0, nil, fmt.Errorf("could not glob %q: %w", pattern, err)
	}

	cur := make(map[string]int64, len(files))
	for _, fname := range files {
		fi, err := os.Stat(fname)
		if err != nil {
			return 0, nil, fmt.Errorf("could not stat %q: %w", fname, err)
		}
		cur[fname] = fi.Size()

		prev, ok := w.sizes[fname]
		if !ok {
			// file just appeared.
			// nothing to compare against.
			continue
		}
		if d := fi.Size() - prev; d > 0 {
			grown += d
		} else {
			stalled = append(stalled, fname)
		}
	}
	w.sizes = cur

	sort.Strings(stalled)
	return grown, stalled, nil
}

const maxAlerts = 5

func (srv *server) alert(w *watcher, fname string) {
	size := w.sizes[fname]
	log.Printf("file %q didn't change in the last %v (size=%d bytes)",
		fname, srv.freq, size,
	)

	w.alerts[fname]++
	if w.alerts[fname] < maxAlerts {
		srv.mail.send(fname, size, srv.freq)
	}
}

// report stores one probe cycle as a health report for the monitored source.
func (srv *server) report(grown int64, faults int) {
	if srv.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := srv.db.AddHealthReport(ctx, qualdb.HealthReport{
		Source: srv.src,
		Words:  grown / int64(srv.word),
		Faults: int64(faults),
	})
	if err != nil {
		log.Printf("could not store health report: %+v", err)
	}
}

type mailConfig struct {
	usr  string
	pwd  string
	srv  string
	port int
	tgts []string
}

func mailConfigFromEnv() mailConfig {
	cfg := mailConfig{
		usr: os.Getenv("MAIL_USERNAME"),
		pwd: os.Getenv("MAIL_PASSWORD"),
		srv: os.Getenv("MAIL_SERVER"),
	}
	cfg.port, _ = strconv.Atoi(os.Getenv("MAIL_PORT"))
	if tgts := os.Getenv("MAIL_TGTS"); tgts != "" {
		cfg.tgts = strings.Split(tgts, ",")
	}
	return cfg
}

func (cfg mailConfig) send(fname string, size int64, freq time.Duration) {
	if cfg.usr == "" || cfg.pwd == "" || cfg.srv == "" ||
		cfg.port == 0 || len(cfg.tgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", cfg.usr)
	msg.SetHeader("Bcc", cfg.tgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[hrng-mon] file alert: %q", fname))
	msg.SetBody("text/plain", fmt.Sprintf(
		"file %q did not grow in the last %v (size=%d bytes)",
		fname, freq, size,
	))

	dial := mail.NewDialer(cfg.srv, cfg.port, cfg.usr, cfg.pwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}
