// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package measurement implements the top-level lifecycle coordinator
// (spec §2, §3: "Initialize -> Register subsystems -> Begin measurement
// -> ... -> End measurement -> Unify -> Write -> Finalize"). It owns
// the one process-wide instance of every other package in this module
// and is the only caller of internal/gate's SetPhase.
package measurement

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/score-p/scorep-measurement-core/internal/cfgreg"
	"github.com/score-p/scorep-measurement-core/internal/clocksync"
	"github.com/score-p/scorep-measurement-core/internal/defs"
	"github.com/score-p/scorep-measurement-core/internal/diag"
	"github.com/score-p/scorep-measurement-core/internal/dispatch"
	"github.com/score-p/scorep-measurement-core/internal/expdir"
	"github.com/score-p/scorep-measurement-core/internal/expdir/s3sink"
	"github.com/score-p/scorep-measurement-core/internal/filter"
	"github.com/score-p/scorep-measurement-core/internal/gate"
	"github.com/score-p/scorep-measurement-core/internal/ipc"
	"github.com/score-p/scorep-measurement-core/internal/ipc/natsipc"
	"github.com/score-p/scorep-measurement-core/internal/ipc/serial"
	"github.com/score-p/scorep-measurement-core/internal/location"
	"github.com/score-p/scorep-measurement-core/internal/substrate/profile"
	"github.com/score-p/scorep-measurement-core/internal/substrate/trace"
	"github.com/score-p/scorep-measurement-core/internal/systree"
)

// Config registers and resolves every SCOREP_-prefixed variable spec
// §6 names, plus the DOMAIN STACK additions (SCOREP_IPC,
// SCOREP_EXPERIMENT_S3_BUCKET, SCOREP_CLOCK_RESYNC_INTERVAL).
type Config struct {
	Registry *cfgreg.Registry

	EnableTracing   *cfgreg.Var
	EnableProfiling *cfgreg.Var
	FilteringFile   *cfgreg.Var
	ExperimentDir   *cfgreg.Var
	TotalMemory     *cfgreg.Var
	PageSize        *cfgreg.Var
	Verbose         *cfgreg.Var
	Debug           *cfgreg.Var
	IPC             *cfgreg.Var
	S3Bucket        *cfgreg.Var
	ResyncInterval  *cfgreg.Var
}

var moduleVocab = []string{"CORE", "MPI", "USER", "PROFILE", "TRACING"}

// NewConfig registers every recognized variable with its spec-given
// default. Call Registry.Resolve() afterward to apply the environment.
func NewConfig() *Config {
	r := cfgreg.New()
	return &Config{
		Registry:        r,
		EnableTracing:   r.Register(&cfgreg.Var{Name: "ENABLE_TRACING", Type: cfgreg.TypeBool, Default: "false"}),
		EnableProfiling: r.Register(&cfgreg.Var{Name: "ENABLE_PROFILING", Type: cfgreg.TypeBool, Default: "true"}),
		FilteringFile:   r.Register(&cfgreg.Var{Name: "FILTERING_FILE", Type: cfgreg.TypePath, Default: "scorep.filter"}),
		ExperimentDir:   r.Register(&cfgreg.Var{Name: "EXPERIMENT_DIRECTORY", Type: cfgreg.TypePath, Default: "./scorep-measurement"}),
		TotalMemory:     r.Register(&cfgreg.Var{Name: "TOTAL_MEMORY", Type: cfgreg.TypeSize, Default: "32M"}),
		PageSize:        r.Register(&cfgreg.Var{Name: "PAGE_SIZE", Type: cfgreg.TypeSize, Default: "2M"}),
		Verbose:         r.Register(&cfgreg.Var{Name: "VERBOSE", Type: cfgreg.TypeBitset, Default: "none", Vocab: moduleVocab}),
		Debug:           r.Register(&cfgreg.Var{Name: "DEBUG", Type: cfgreg.TypeBitset, Default: "none", Vocab: moduleVocab}),
		IPC:             r.Register(&cfgreg.Var{Name: "IPC", Type: cfgreg.TypeOptionSet, Default: "serial", Vocab: []string{"serial", "nats"}}),
		S3Bucket:        r.Register(&cfgreg.Var{Name: "EXPERIMENT_S3_BUCKET", Type: cfgreg.TypeString, Default: ""}),
		ResyncInterval:  r.Register(&cfgreg.Var{Name: "CLOCK_RESYNC_INTERVAL", Type: cfgreg.TypeNumber, Default: "0"}),
	}
}

// Runtime is the single process-wide measurement-core instance: the
// definition registry, the location manager, the substrate dispatcher,
// the filter, and the persisted experiment directory, wired together
// per the resolved Config.
type Runtime struct {
	RunID  string
	Config *Config

	Defs      *defs.Manager
	Locations *location.Manager
	Dispatch  *dispatch.Manager
	Filter    *filter.Filter
	Comm      ipc.Comm
	Dir       *expdir.Directory

	trace    *trace.Substrate
	profile  *profile.Substrate
	natsConn *nats.Conn

	beginEpoch time.Time
}

// Initialize performs spec §2/§3's first lifecycle step: resolve
// configuration, load the filter file (if present), prepare the
// experiment directory, and build every subsystem — but does not yet
// flip the phase gate to WITHIN (that is BeginMeasurement's job).
// Calling any adapter entry point before BeginMeasurement observes
// phase PRE and records nothing (spec §8 scenario 5).
func Initialize(cfg *Config) (*Runtime, error) {
	cfg.Registry.Resolve()

	f := filter.New()
	if path := cfg.FilteringFile.Path(); path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			parsed, err := filter.Parse(bytes.NewReader(content))
			if err != nil {
				return nil, fmt.Errorf("measurement: parsing filter file %s: %w", path, err)
			}
			f = parsed
		case cfg.FilteringFile.IsDefault():
			// No filter file at the default path is not an error (spec §6
			// only requires a parse error to abort initialization).
		default:
			// SCOREP_Filtering.c: a file the user explicitly configured
			// but that cannot be read is a hard initialization error,
			// distinct from "no filter file configured".
			return nil, fmt.Errorf("measurement: reading filter file %s: %w", path, err)
		}
	}

	dir, err := expdir.Create(cfg.ExperimentDir.Path(), cfg.EnableTracing.Bool() && !cfg.EnableProfiling.Bool())
	if err != nil {
		return nil, fmt.Errorf("measurement: preparing experiment directory: %w", err)
	}

	defsManager := defs.NewManager()
	runID := uuid.NewString()
	rt := &Runtime{
		RunID:    runID,
		Config:   cfg,
		Defs:     defsManager,
		Dispatch: dispatch.NewManager(),
		Filter:   f,
		Dir:      dir,
	}

	comm, natsConn, err := newComm(cfg.IPC.String(), runID)
	if err != nil {
		return nil, fmt.Errorf("measurement: building IPC binding: %w", err)
	}
	rt.Comm = comm
	rt.natsConn = natsConn

	rt.Locations = location.NewManager(defsManager, location.ReuseByParadigm, location.Hooks{})

	if cfg.EnableTracing.Bool() {
		rt.trace = trace.New(dir.Root)
		rt.Dispatch.Register(rt.trace.AsDispatchSubstrate())
	}
	if cfg.EnableProfiling.Bool() {
		rt.profile = profile.New(defsManager)
		rt.Dispatch.Register(rt.profile.AsDispatchSubstrate())
	}

	if err := dir.WriteConfigDump(cfg.Registry.Dump()); err != nil {
		return nil, fmt.Errorf("measurement: writing scorep.cfg: %w", err)
	}

	return rt, nil
}

// newComm builds the ipc.Comm binding SCOREP_IPC selects. "serial" (the
// default) is a single-rank mockup needing no transport; "nats" dials
// the default local NATS server and joins a one-rank group keyed by
// runID, ready to grow to a real multi-process group once a launcher
// assigns size/rank out of band. The returned *nats.Conn is nil for
// the serial binding and must be closed alongside the Runtime.
func newComm(kind, runID string) (ipc.Comm, *nats.Conn, error) {
	switch kind {
	case "nats":
		conn, err := nats.Connect(nats.DefaultURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to nats: %w", err)
		}
		comm, err := natsipc.Connect(conn, runID, 1, 0)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return comm, conn, nil
	default:
		return serial.New(), nil, nil
	}
}

// BeginMeasurement flips the phase gate to WITHIN (spec §8 scenario 5)
// and records the local wall-clock time as the begin-epoch boundary
// for the eventual GlobalEpoch reduction.
func (rt *Runtime) BeginMeasurement() {
	rt.beginEpoch = time.Now()
	gate.SetPhase(gate.PhaseWithin)
}

// EndMeasurement flips the phase gate to POST; subsequent adapter
// calls observe recordEvents=false from gate.Enter and are silently
// dropped (spec §8 scenario 5).
func (rt *Runtime) EndMeasurement() {
	gate.SetPhase(gate.PhasePost)
}

// EnterRegion is the adapter-facing hot-path entry point for a region
// enter event (spec §4.1, §4.5). It is a thin wrapper: gate check,
// location-local stack push, then dispatch fan-out — skipped entirely
// if the gate reports the call should not record events.
func (rt *Runtime) EnterRegion(region defs.Handle) {
	nested, record := gate.Enter()
	defer gate.Exit()
	if nested || !record {
		return
	}
	r := rt.Defs.Region(region)
	var file string
	if r.File != defs.Invalid {
		file = rt.Defs.String(rt.Defs.SourceFile(r.File).Name)
	}
	if rt.Filter.MatchRegion(rt.Defs.String(r.Name), rt.Defs.String(r.CanonicalName), file) {
		return
	}

	loc := rt.Locations.Current()
	if loc == nil {
		return
	}
	loc.EnterRegion(region)
	rt.Dispatch.Dispatch(dispatch.Event{Kind: dispatch.EventEnter, LocationID: loc.LocalID, Payload: region})
}

// ExitRegion is the symmetric hot-path exit entry point.
func (rt *Runtime) ExitRegion(region defs.Handle) {
	nested, record := gate.Enter()
	defer gate.Exit()
	if nested || !record {
		return
	}

	loc := rt.Locations.Current()
	if loc == nil {
		return
	}
	loc.ExitRegion(region, true)
	rt.Dispatch.Dispatch(dispatch.Event{Kind: dispatch.EventExit, LocationID: loc.LocalID, Payload: region})
}

// Unify builds the unified catalog from this process's own local
// definition manager only (spec §3's unification phase). No
// definitions are exchanged with or merged from other ranks over
// rt.Comm, whichever IPC binding is configured.
func (rt *Runtime) Unify(ctx context.Context) (*defs.Manager, error) {
	unified, _ := defs.Unify([]*defs.Manager{rt.Defs})
	return unified, nil
}

// Write flushes every enabled substrate's accumulated records to the
// experiment directory (spec §6's "prepares the directory").
func (rt *Runtime) Write() error {
	if rt.trace != nil {
		if err := rt.trace.Close(); err != nil {
			return fmt.Errorf("measurement: closing trace substrate: %w", err)
		}
	}
	if rt.profile != nil {
		path := filepath.Join(rt.Dir.Root, "scorep.cubex")
		if err := rt.profile.Flush(path); err != nil {
			return fmt.Errorf("measurement: flushing profile substrate: %w", err)
		}
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		if err := rt.Dir.RecordFile("scorep.cubex", "profile", size, time.Now()); err != nil {
			return fmt.Errorf("measurement: indexing scorep.cubex: %w", err)
		}
	}
	return nil
}

// Finalize runs Unify, Write, then releases every resource the arenas
// and file index hold (spec §3: "released at Finalize en bloc").
func (rt *Runtime) Finalize(ctx context.Context) error {
	if _, err := rt.Unify(ctx); err != nil {
		return fmt.Errorf("measurement: unification: %w", err)
	}
	if err := rt.Write(); err != nil {
		return err
	}

	if bucket := rt.Config.S3Bucket.String(); bucket != "" {
		sink, err := s3sink.New(ctx, bucket, rt.RunID)
		if err != nil {
			return fmt.Errorf("measurement: building S3 sink: %w", err)
		}
		if err := sink.UploadDirectory(ctx, rt.Dir); err != nil {
			return fmt.Errorf("measurement: uploading experiment directory: %w", err)
		}
	}

	if c, ok := rt.Comm.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			diag.Warnf("closing IPC binding: %v", err)
		}
	}
	if rt.natsConn != nil {
		rt.natsConn.Close()
	}

	return rt.Dir.Close()
}

// ImportSystemTree loads a system tree description from r (spec §4.4;
// SUPPLEMENTED FEATURES' JSON import) in place of a platform probe.
func (rt *Runtime) ImportSystemTree(r io.Reader) (*systree.Tree, error) {
	return systree.ImportJSON(rt.Defs, r)
}

// ClockSync runs the ping-pong clock-synchronization protocol against
// every peer reachable through rt.Comm (spec §4.8), falling back to the
// single-rank mockup when rt.Comm reports size 1.
func (rt *Runtime) ClockSync(ctx context.Context) error {
	offset, err := clocksync.Sync(ctx, rt.Comm, func() float64 { return float64(time.Now().UnixNano()) / 1e9 })
	if err != nil {
		return fmt.Errorf("measurement: clock sync: %w", err)
	}
	for _, loc := range rt.Locations.All() {
		loc.Clock = offset
	}
	diag.Debugf("clock sync complete, offset=%.6f", offset.Offset)
	return nil
}
