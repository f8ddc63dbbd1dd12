// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hrng-boot (re)starts and supervises the entropy acquisition
// processes.
//
// Each process carries a bounded restart budget: a process that keeps
// dying after its budget is spent takes the whole boot down, the same
// bounded-retry policy the entropy read path applies to a silent chip.
package main // import "github.com/go-hrng/hrng/cmd/hrng-boot"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		devs     = flag.String("dev", os.Getenv("HRNGDEVS"), "comma-separated list of source specs handed to hrng-svc")
		addr     = flag.String("addr", ":9999", "[ip]:port hrng-svc listens on")
		datadir  = flag.String("data-dir", os.Getenv("HRNGDATADIR"), "acquisition directory handed to hrng-mon")
		logdir   = flag.String("log-dir", "/var/log/hrng", "directory for process log files")
		doMon    = flag.Bool("pmon", false, "enable pmon monitoring")
		freq     = flag.Duration("freq", 1*time.Second, "pmon frequency")
		restarts = flag.Int("restarts", 5, "restart budget per supervised process")
	)

	log.SetPrefix("hrng-boot: ")
	log.SetFlags(0)

	flag.Parse()

	if *devs == "" {
		log.Fatalf("missing source specs (-dev or $HRNGDEVS)")
	}

	sup := &supervisor{
		dir:      *logdir,
		doMon:    *doMon,
		freq:     *freq,
		restarts: *restarts,
		backoff:  2 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	err := sup.run(procsOf(*devs, *addr, *datadir), stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type proc struct {
	name string
	args []string
}

// procsOf assembles the acquisition process tree serving the given sources.
func procsOf(devs, addr, datadir string) []proc {
	return []proc{
		{name: "hrng-svc", args: []string{"-addr", addr, "-dev", devs}},
		{name: "hrng-mon", args: []string{"-dir", datadir}},
	}
}

type supervisor struct {
	dir   string // log directory
	doMon bool
	freq  time.Duration

	restarts int           // restart budget per process
	backoff  time.Duration // pause before a restart
}

func (sup *supervisor) run(procs []proc, stop chan os.Signal) error {
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	// stale processes from a previous boot would hold the control ports.
	for _, p := range procs {
		kill := exec.Command("killall", p.name)
		kill.Stdout = os.Stdout
		kill.Stderr = os.Stderr
		if err := kill.Run(); err != nil {
			log.Printf("could not kill stale %q: %+v", p.name, err)
		}
	}

	var (
		grp  errgroup.Group
		kill = make(chan int)
	)
	for _, p := range procs {
		p := p
		grp.Go(func() error {
			return sup.supervise(p, kill)
		})
	}

	go func() {
		<-stop
		close(kill)
	}()

	err := grp.Wait()
	if err != nil {
		return fmt.Errorf("could not boot acquisition: %w", err)
	}
	return nil
}

// supervise keeps p running until a stop is requested, restarting it up to
// the restart budget.
func (sup *supervisor) supervise(p proc, kill chan int) error {
	for attempt := 0; ; attempt++ {
		err := sup.start(p, kill)
		if err == nil {
			// stopped on request or exited cleanly.
			return nil
		}
		if attempt >= sup.restarts {
			return fmt.Errorf("could not keep %q alive after %d restarts: %w", p.name, sup.restarts, err)
		}
		log.Printf("process %q exited (%+v); restarting in %v...", p.name, err, sup.backoff)
		select {
		case <-kill:
			return nil
		case <-time.After(sup.backoff):
		}
	}
}

func (sup *supervisor) start(p proc, kill chan int) error {
	lname := filepath.Join(sup.dir, p.name+".log")
	out, err := os.OpenFile(lname, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("could not open log file %q: %w", lname, err)
	}
	defer out.Close()

	cmd := exec.Command(p.name, p.args...)
	cmd.Stdout = out
	cmd.Stderr = out

	log.Printf("starting %q...", p.name)
	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("could not start %q: %w", p.name, err)
	}

	if sup.doMon {
		stop, err := sup.monitor(p.name, cmd.Process.Pid)
		if err != nil {
			log.Printf("could not monitor %q: %+v", p.name, err)
		} else {
			defer stop()
		}
	}

	errch := make(chan error)
	go func() {
		errch <- cmd.Wait()
	}()

	select {
	case <-kill:
		err = cmd.Process.Kill()
		if err != nil {
			return fmt.Errorf("could not kill %q: %w", p.name, err)
		}
		<-errch
		return nil
	case err = <-errch:
		if err != nil {
			return fmt.Errorf("could not run %q: %w", p.name, err)
		}
		return nil
	}
}

// monitor attaches pmon to the process and returns the detach hook.
func (sup *supervisor) monitor(name string, pid int) (func(), error) {
	p, err := pmon.Monitor(pid)
	if err != nil {
		return nil, fmt.Errorf("could not attach pmon to %q (pid=%d): %w", name, pid, err)
	}

	fname := filepath.Join(sup.dir, name+"-pmon.log")
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open pmon log file %q: %w", fname, err)
	}
	p.W = f
	p.Freq = sup.freq

	go func() {
		err := p.Run()
		if err != nil {
			log.Printf("could not monitor %q: %+v", name, err)
		}
	}()

	return func() {
		if err := p.Kill(); err != nil {
			log.Printf("could not stop monitoring %q: %+v", name, err)
		}
		_ = f.Close()
	}, nil
}
