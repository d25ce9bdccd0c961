// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package serial provides the single-rank IPC mockup spec §4.7 calls
// for when "no IPC is compiled in": a Comm of size 1 whose Reduce is
// the identity and whose Send/Recv always fail (there is no peer to
// exchange with), matching the "offset 0, offset_time = current"
// fallback behavior the clock-sync package selects when Size() == 1.
package serial

import (
	"context"
	"fmt"

	"github.com/score-p/scorep-measurement-core/internal/ipc"
)

// Comm is the serial, single-process ipc.Comm implementation.
type Comm struct{}

// New returns a ready-to-use single-rank communicator.
func New() *Comm { return &Comm{} }

func (Comm) Size() int { return 1 }
func (Comm) Rank() int { return 0 }

func (Comm) Send(ctx context.Context, dest int, tag int, typ ipc.ValueType, data []byte) error {
	return fmt.Errorf("ipc/serial: no peer rank %d to send to", dest)
}

func (Comm) Recv(ctx context.Context, src int, tag int) (int, []byte, error) {
	return 0, nil, fmt.Errorf("ipc/serial: no peer to receive from")
}

// Reduce is the identity: with one rank, the reduction of any op over
// a single value is that value.
func (Comm) Reduce(ctx context.Context, op ipc.ReduceOp, local uint64) (uint64, error) {
	return local, nil
}
