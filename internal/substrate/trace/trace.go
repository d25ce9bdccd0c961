// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package trace implements the trace substrate's write-out shape
// (spec §4.5, §6): one append-only event-record stream per location
// under traces/, plus an event counter per location. The byte-level
// OTF2 encoding is out of scope per spec §1 non-goals; this substrate
// exercises the dispatch wiring, directory layout, and record framing
// a real encoder would plug into.
package trace

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/score-p/scorep-measurement-core/internal/defs"
	"github.com/score-p/scorep-measurement-core/internal/dispatch"
)

// recordKind mirrors dispatch.EventKind in the on-disk record header,
// kept distinct so the trace format doesn't silently break if
// dispatch.EventKind's numbering ever changes.
type recordKind uint8

const (
	recordEnter recordKind = iota + 1
	recordExit
)

// locationWriter owns one location's append-only record stream.
type locationWriter struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	events uint64
}

func (lw *locationWriter) write(kind recordKind, region defs.Handle) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	var hdr [9]byte
	hdr[0] = byte(kind)
	binary.LittleEndian.PutUint64(hdr[1:], uint64(region))
	if _, err := lw.w.Write(hdr[:]); err != nil {
		return err
	}
	lw.events++
	return nil
}

func (lw *locationWriter) close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if err := lw.w.Flush(); err != nil {
		return err
	}
	return lw.f.Close()
}

// Substrate writes one record file per location under root/traces/.
type Substrate struct {
	root string

	mu      sync.Mutex
	writers map[uint64]*locationWriter
}

// New returns a trace substrate that writes location streams under
// root/traces/ (root is conventionally an expdir.Directory's Root).
func New(root string) *Substrate {
	return &Substrate{root: root, writers: make(map[uint64]*locationWriter)}
}

func (s *Substrate) writerFor(location uint64) (*locationWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lw, ok := s.writers[location]; ok {
		return lw, nil
	}
	path := filepath.Join(s.root, "traces", fmt.Sprintf("%d.trace", location))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: creating %s: %w", path, err)
	}
	lw := &locationWriter{f: f, w: bufio.NewWriter(f)}
	s.writers[location] = lw
	return lw, nil
}

// AsDispatchSubstrate wraps s as a dispatch.Substrate wiring enter/exit
// events into per-location record files.
func (s *Substrate) AsDispatchSubstrate() *dispatch.Substrate {
	sub := &dispatch.Substrate{Name: "trace"}
	sub.Callbacks[dispatch.EventEnter] = func(ev dispatch.Event) {
		if region, ok := ev.Payload.(defs.Handle); ok {
			s.record(recordEnter, region, ev.LocationID)
		}
	}
	sub.Callbacks[dispatch.EventExit] = func(ev dispatch.Event) {
		if region, ok := ev.Payload.(defs.Handle); ok {
			s.record(recordExit, region, ev.LocationID)
		}
	}
	return sub
}

func (s *Substrate) record(kind recordKind, region defs.Handle, location uint64) {
	lw, err := s.writerFor(location)
	if err != nil {
		return
	}
	_ = lw.write(kind, region)
}

// EventCount returns the number of records written for location so
// far (spec §6's per-location event count in trace metadata).
func (s *Substrate) EventCount(location uint64) uint64 {
	s.mu.Lock()
	lw, ok := s.writers[location]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.events
}

// Close flushes and closes every location's record stream.
func (s *Substrate) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, lw := range s.writers {
		if err := lw.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
