// Copyright 2024 The go-hrng Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hwrng

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Registry owns a set of entropy sources, ranks them by declared quality and
// serializes read dispatch: at most one read call is in flight per registry,
// so sources never see concurrent readers.
type Registry struct {
	mu   sync.Mutex
	srcs []Source
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register runs the source's Init hook (when it has one) and adds the source
// to the ranking. A failed Init aborts the registration: the source is not
// added and its read entry point stays unreachable.
func (reg *Registry) Register(src Source) error {
	if ini, ok := src.(Initer); ok {
		err := ini.Init()
		if err != nil {
			return fmt.Errorf("hwrng: could not initialize %q: %w", src.Name(), err)
		}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, s := range reg.srcs {
		if s.Name() == src.Name() {
			return fmt.Errorf("hwrng: source %q already registered", src.Name())
		}
	}
	reg.srcs = append(reg.srcs, src)
	sort.SliceStable(reg.srcs, func(i, j int) bool {
		return reg.srcs[i].Quality() > reg.srcs[j].Quality()
	})
	return nil
}

// Unregister removes the named source and runs its Cleanup hook once.
func (reg *Registry) Unregister(name string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for i, src := range reg.srcs {
		if src.Name() != name {
			continue
		}
		reg.srcs = append(reg.srcs[:i], reg.srcs[i+1:]...)
		if cln, ok := src.(Cleanuper); ok {
			cln.Cleanup()
		}
		return nil
	}
	return fmt.Errorf("hwrng: no source %q", name)
}

// Sources returns the registered source names, best ranked first.
func (reg *Registry) Sources() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	names := make([]string, len(reg.srcs))
	for i, src := range reg.srcs {
		names[i] = src.Name()
	}
	return names
}

// Best returns the highest-ranked source, or nil when none is registered.
func (reg *Registry) Best() Source {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if len(reg.srcs) == 0 {
		return nil
	}
	return reg.srcs[0]
}

// Source returns the named source.
func (reg *Registry) Source(name string) (Source, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, src := range reg.srcs {
		if src.Name() == name {
			return src, nil
		}
	}
	return nil, fmt.Errorf("hwrng: no source %q", name)
}

// Read drains entropy into p, trying sources in ranking order and falling
// back to the next one when a source reports no data. Sources whose word
// size exceeds len(p) are skipped; if no registered source can serve the
// buffer at all, Read returns ErrShortBuffer. The whole call holds the
// dispatch lock, so concurrent callers are serialized.
func (reg *Registry) Read(p []byte, wait bool) (int, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if len(reg.srcs) == 0 {
		return 0, ErrNoSource
	}

	served := false
	for _, src := range reg.srcs {
		if len(p) < src.WordSize() {
			continue
		}
		served = true
		n, err := src.Read(p, wait)
		if n > 0 || err != nil {
			return n, err
		}
	}
	if !served {
		// no registered source can ever fill this buffer.
		return 0, ErrShortBuffer
	}
	return 0, nil
}

// Reader adapts the registry to io.Reader. Read blocks until at least one
// word of entropy was produced or a source fails.
func (reg *Registry) Reader() io.Reader {
	return &reader{reg: reg}
}

type reader struct {
	reg *Registry
}

func (r *reader) Read(p []byte) (int, error) {
	for {
		n, err := r.reg.Read(p, true)
		if n > 0 || err != nil {
			return n, err
		}
		// every ranked source exhausted its poll budget.
		time.Sleep(10 * time.Millisecond)
	}
}

var _ io.Reader = (*reader)(nil)
