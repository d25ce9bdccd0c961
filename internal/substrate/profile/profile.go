// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package profile implements the profile substrate's write-out shape
// (spec §4.5, §6): it accumulates per-region visit counts, then encodes
// the summary as Avro OCF records into scorep.cubex. No time is
// accumulated: the inclusive/exclusive tick fields are written as 0. The real CUBE4 binary format is out of
// scope per spec §1 non-goals; this substrate exercises a real
// self-describing binary encoding (linkedin/goavro/v2) standing in for
// it, matching how the teacher's checkpoint writers use the same
// library for summary-record persistence.
package profile

import (
	"bufio"
	"fmt"
	"os"

	"github.com/linkedin/goavro/v2"
	"github.com/score-p/scorep-measurement-core/internal/defs"
	"github.com/score-p/scorep-measurement-core/internal/dispatch"
)

const recordSchema = `{
	"type": "record",
	"name": "RegionProfile",
	"fields": [
		{"name": "region", "type": "long"},
		{"name": "location", "type": "long"},
		{"name": "visits", "type": "long"},
		{"name": "inclusiveTicks", "type": "long"},
		{"name": "exclusiveTicks", "type": "long"},
		{"name": "isPhase", "type": "boolean"}
	]
}`

// Record is one region's accumulated profile row for one location.
// IsPhase marks rows hoisted to the thread root by phase
// postprocessing (see hoistPhases).
type Record struct {
	Region         defs.Handle
	Location       uint64
	Visits         int64
	InclusiveTicks int64
	ExclusiveTicks int64
	IsPhase        bool
}

func (r Record) toAvro() map[string]any {
	return map[string]any{
		"region":         int64(r.Region),
		"location":       int64(r.Location),
		"visits":         r.Visits,
		"inclusiveTicks": r.InclusiveTicks,
		"exclusiveTicks": r.ExclusiveTicks,
		"isPhase":        r.IsPhase,
	}
}

// key identifies one accumulation bucket: one region, on one location.
type key struct {
	region   defs.Handle
	location uint64
}

// Substrate accumulates region profile rows in memory and flushes them
// to an Avro OCF file on Flush (called once at Finalize, per spec §6's
// "unified profile"). defsManager resolves a region's role so entries
// and exits of a phase region (scorep_profile_phase.c's
// SCOREP_REGION_PHASE/DYNAMIC_PHASE/DYNAMIC_LOOP_PHASE) can be flagged
// during postprocessing instead of staying wherever the call path
// nested them.
type Substrate struct {
	defsManager *defs.Manager
	rows        map[key]*Record
}

// New returns an empty profile substrate. defsManager may be nil, in
// which case hoistPhases is a no-op (no region roles to resolve).
func New(defsManager *defs.Manager) *Substrate {
	return &Substrate{defsManager: defsManager, rows: make(map[key]*Record)}
}

// AsDispatchSubstrate wraps s as a dispatch.Substrate, wiring enter/exit
// events into the accumulator (spec §4.5: substrates are registered
// into the dispatcher's fixed per-kind callback arrays). receiveWhileOff
// is true for the profile substrate per spec §4.5's own example
// ("used to keep profiles consistent during paused tracing").
func (s *Substrate) AsDispatchSubstrate() *dispatch.Substrate {
	sub := &dispatch.Substrate{Name: "profile", ReceiveWhileOff: true}
	sub.Callbacks[dispatch.EventEnter] = func(ev dispatch.Event) {
		if region, ok := ev.Payload.(defs.Handle); ok {
			s.onEnter(region, ev.LocationID)
		}
	}
	sub.Callbacks[dispatch.EventExit] = func(ev dispatch.Event) {
		if region, ok := ev.Payload.(defs.Handle); ok {
			s.onExit(region, ev.LocationID)
		}
	}
	return sub
}

func (s *Substrate) rowFor(region defs.Handle, location uint64) *Record {
	k := key{region: region, location: location}
	r, ok := s.rows[k]
	if !ok {
		r = &Record{Region: region, Location: location}
		s.rows[k] = r
	}
	return r
}

func (s *Substrate) onEnter(region defs.Handle, location uint64) {
	r := s.rowFor(region, location)
	r.Visits++
}

func (s *Substrate) onExit(region defs.Handle, location uint64) {
	// Real tick accounting is an adapter/timer concern (spec §1 scopes
	// the core to dispatch, not timing); this substrate only tracks
	// visit counts reliably without a wired timer source.
	_ = s.rowFor(region, location)
}

// hoistPhases flags every row whose region carries a phase role
// (scorep_profile_phase.c's SCOREP_REGION_PHASE/DYNAMIC_PHASE/
// DYNAMIC_LOOP_PHASE) as a thread-root entry rather than leaving it
// attributed to wherever the call path happened to nest it — this
// substrate's accumulation has no parent call-path per row to
// literally relocate, so hoisting here means flagging the row for
// separate top-level reporting at write-out instead of moving it
// within a calltree.
func (s *Substrate) hoistPhases() {
	if s.defsManager == nil {
		return
	}
	for _, r := range s.rows {
		r.IsPhase = s.defsManager.Region(r.Region).Role.IsPhase()
	}
}

// Records returns every accumulated row, for tests and for Flush.
func (s *Substrate) Records() []Record {
	s.hoistPhases()
	out := make([]Record, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, *r)
	}
	return out
}

// Flush encodes every accumulated row as Avro OCF records into path
// (conventionally <experiment dir>/scorep.cubex).
func (s *Substrate) Flush(path string) error {
	s.hoistPhases()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("profile: creating %s: %w", path, err)
	}
	defer f.Close()

	codec, err := goavro.NewCodec(recordSchema)
	if err != nil {
		return fmt.Errorf("profile: building Avro codec: %w", err)
	}

	w := bufio.NewWriter(f)
	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return fmt.Errorf("profile: creating OCF writer: %w", err)
	}

	records := make([]any, 0, len(s.rows))
	for _, r := range s.rows {
		records = append(records, r.toAvro())
	}
	if err := writer.Append(records); err != nil {
		return fmt.Errorf("profile: appending records: %w", err)
	}
	return w.Flush()
}
