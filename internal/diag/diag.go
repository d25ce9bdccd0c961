// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package diag is the measurement core's error reporter: severity-graded,
// formatted diagnostics plus the abort pathway every invariant breach on
// the hot path funnels into (see spec §7).
//
// Each severity has its own writer so that any of them can be silenced
// independently, the same shape as the teacher's pkg/log package. Unlike
// that package, diag additionally understands the core's Code values and
// its Abort severity, which prints a bug-report hint before terminating
// the process.
package diag

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sync/atomic"
)

const packageName = "SCOREP"

// Severity grades a diagnostic message. Order follows the teacher's
// Debug < Info < Note < Warn < Error < Crit ladder without its Note and
// Crit grades, with Deprecated between Warning and Error and Abort
// appended as the terminal severity the spec calls for in §7.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityDeprecated
	SeverityError
	SeverityAbort
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityDeprecated:
		return "DEPRECATED"
	case SeverityError:
		return "ERROR"
	case SeverityAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	debugLog = log.New(DebugWriter, "", 0)
	infoLog  = log.New(InfoWriter, "", 0)
	warnLog  = log.New(WarnWriter, "", 0)
	errLog   = log.New(ErrWriter, "", 0)
)

// pendingSignalWarning is set when a diagnostic is raised while the
// gate reports signal context through signalContextHook; see
// internal/gate. Diagnostics raised in that state must not
// allocate or take locks, so they set pendingSignalWarning instead of
// formatting and writing immediately.
var pendingSignalWarning atomic.Bool

// SetLevel silences writers below lvl, the same fallthrough scheme the
// teacher's SetLogLevel uses.
func SetLevel(lvl string) {
	switch lvl {
	case "abort", "error":
		WarnWriter = io.Discard
		fallthrough
	case "warning":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
	default:
		fmt.Fprintf(os.Stderr, "[%s] diag: unknown log level %q, using debug\n", packageName, lvl)
	}
}

// MarkSignalContext is called by the gate on entering (true) and
// leaving (false) signal context. Entering does nothing here: whether a
// diagnostic is deferred is decided by signalContextHook. Leaving emits
// a single summary warning if any diagnostic was deferred meanwhile.
func MarkSignalContext(inSignal bool) {
	if inSignal {
		return
	}
	if pendingSignalWarning.CompareAndSwap(true, false) {
		Warn("a diagnostic was suppressed while executing in signal context")
	}
}

func deferredInSignalContext() bool {
	// The gate sets this; diag only reads it to avoid an import cycle
	// (gate imports diag to install this hook and to call
	// MarkSignalContext, not vice versa).
	return signalContextHook != nil && signalContextHook()
}

// signalContextHook lets internal/gate register its signal-context
// query without diag importing gate (which imports diag).
var signalContextHook func() bool

// SetSignalContextHook is called once by internal/gate during package
// initialization.
func SetSignalContextHook(f func() bool) {
	signalContextHook = f
}

func emit(sev Severity, msg string) {
	if deferredInSignalContext() {
		pendingSignalWarning.Store(true)
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file, line = "???", 0
	}

	prefix := fmt.Sprintf("[%s] %s:%d %s: ", packageName, file, line, sev)
	switch sev {
	case SeverityDebug:
		if DebugWriter != io.Discard {
			debugLog.Output(0, prefix+msg)
		}
	case SeverityInfo:
		if InfoWriter != io.Discard {
			infoLog.Output(0, prefix+msg)
		}
	case SeverityWarning, SeverityDeprecated:
		if WarnWriter != io.Discard {
			warnLog.Output(0, prefix+msg)
		}
	case SeverityError, SeverityAbort:
		if ErrWriter != io.Discard {
			errLog.Output(0, prefix+msg)
		}
	}
}

func Debug(v ...any)                 { emit(SeverityDebug, fmt.Sprint(v...)) }
func Debugf(f string, v ...any)      { emit(SeverityDebug, fmt.Sprintf(f, v...)) }
func Info(v ...any)                  { emit(SeverityInfo, fmt.Sprint(v...)) }
func Infof(f string, v ...any)       { emit(SeverityInfo, fmt.Sprintf(f, v...)) }
func Warn(v ...any)                  { emit(SeverityWarning, fmt.Sprint(v...)) }
func Warnf(f string, v ...any)       { emit(SeverityWarning, fmt.Sprintf(f, v...)) }
func Deprecated(v ...any)            { emit(SeverityDeprecated, fmt.Sprint(v...)) }
func Deprecatedf(f string, v ...any) { emit(SeverityDeprecated, fmt.Sprintf(f, v...)) }
func Error(v ...any)                 { emit(SeverityError, fmt.Sprint(v...)) }
func Errorf(f string, v ...any)      { emit(SeverityError, fmt.Sprintf(f, v...)) }

// Abort prints the formatted message at Abort severity, followed by a
// bug-report hint and a core-dump preservation hint (spec §7), then
// terminates the process. Hot-path callers that detect an invariant
// breach call this; it never returns.
func Abort(v ...any) {
	abort(fmt.Sprint(v...))
}

func Abortf(f string, v ...any) {
	abort(fmt.Sprintf(f, v...))
}

func abort(msg string) {
	emit(SeverityAbort, msg)
	fmt.Fprintf(os.Stderr, "[%s] This is a fatal condition in the measurement core.\n", packageName)
	fmt.Fprintf(os.Stderr, "[%s] Please report this, including the above message, to the maintainers.\n", packageName)
	fmt.Fprintf(os.Stderr, "[%s] If a core dump was produced, preserve it; it will help diagnose the failure.\n", packageName)
	os.Exit(1)
}
