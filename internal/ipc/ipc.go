// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ipc defines the inter-process communication abstraction spec
// §4.7 requires for clock synchronization, unification, and the global
// epoch reduction: Send, Recv, Reduce over Size/Rank, with concrete
// bindings supplied by subpackages (serial: a single-rank mockup;
// natsipc: a NATS-backed binding for a development/test cluster of
// processes).
package ipc

import "context"

// ValueType names a typed payload kind (spec §4.7: "typed payloads
// (INT, UINT64, ...)").
type ValueType int

const (
	ValueInt ValueType = iota
	ValueUint32
	ValueUint64
	ValueByte
	ValueFloat64
)

// ReduceOp names a collective reduction operator.
type ReduceOp int

const (
	ReduceMin ReduceOp = iota
	ReduceMax
	ReduceSum
)

// Comm is the IPC abstraction every clock-sync, unification, and
// global-epoch-reduction component is written against. Concrete
// bindings (serial, natsipc) implement it.
type Comm interface {
	// Size returns the number of ranks in the communicator.
	Size() int
	// Rank returns this process's rank, in [0, Size()).
	Rank() int

	// Send transmits a typed payload to dest. Blocks until delivered
	// or ctx is done.
	Send(ctx context.Context, dest int, tag int, typ ValueType, data []byte) error
	// Recv blocks for a message from src (or any source if src < 0)
	// tagged tag, returning the sender's rank and payload bytes.
	Recv(ctx context.Context, src int, tag int) (fromRank int, data []byte, err error)

	// Reduce combines each rank's local uint64 value with op,
	// delivering the result to every rank (spec §4.7: "an IPC
	// collective reduces begin via MIN and end via MAX to rank 0" —
	// bindings may restrict delivery to rank 0 and leave others with
	// an unspecified result, documented per binding).
	Reduce(ctx context.Context, op ReduceOp, local uint64) (uint64, error)
}
