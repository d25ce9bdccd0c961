// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package clocksync implements the rank-0-master ping-pong clock
// synchronization protocol and the global-epoch reduction (spec §4.7).
package clocksync

import (
	"context"
	"encoding/binary"
	"errors"
	"math"

	"github.com/score-p/scorep-measurement-core/internal/ipc"
	"github.com/score-p/scorep-measurement-core/internal/location"
)

var errNonPositiveEpoch = errors.New("clocksync: global epoch end does not exceed begin")

// PingPongRounds is N in spec §4.7 step 4.
const PingPongRounds = 10

const (
	tagPing   = 1
	tagEcho   = 2
	tagResult = 3
)

// Sample is one ping-pong round's three timestamps, in the master's
// and worker's respective clock domains (spec §4.7 steps 1-3).
type Sample struct {
	TA float64 // master send time
	TB float64 // master receive-echo time
	TW float64 // worker receive time
}

// RoundTrip is tB - tA for s.
func (s Sample) RoundTrip() float64 { return s.TB - s.TA }

// ChooseBest returns the index of the sample with the minimum round
// trip time (spec §4.7 step 4: "selects the pingpong with minimum
// round-trip time").
func ChooseBest(samples []Sample) (idx int, rtt float64) {
	idx = 0
	rtt = samples[0].RoundTrip()
	for i := 1; i < len(samples); i++ {
		if r := samples[i].RoundTrip(); r < rtt {
			rtt = r
			idx = i
		}
	}
	return idx, rtt
}

// MasterSyncTime computes sync_master = tA + (tB-tA)/2 for the chosen
// sample (spec §4.7 step 4).
func MasterSyncTime(s Sample) float64 {
	return s.TA + s.RoundTrip()/2
}

// WorkerOffset computes the worker's clock offset = sync_master -
// tW_at_chosen_index (spec §4.7 step 6).
func WorkerOffset(syncMaster float64, chosen Sample) float64 {
	return syncMaster - chosen.TW
}

// Clock returns the current time in the caller's local clock domain
// (whatever unit the adapter's timer uses; the protocol only relies on
// it being monotonic and consistent within one rank).
type Clock func() float64

// RunMaster executes the master side of the protocol against worker
// rank dest: it sends PingPongRounds pings, reads back each echo, then
// sends the chosen (syncMaster, index) pair to the worker. now supplies
// master-side timestamps.
func RunMaster(ctx context.Context, comm ipc.Comm, dest int, now Clock) (location.ClockOffset, error) {
	samples := make([]Sample, PingPongRounds)
	for i := 0; i < PingPongRounds; i++ {
		tA := now()
		if err := comm.Send(ctx, dest, tagPing, ipc.ValueFloat64, nil); err != nil {
			return location.ClockOffset{}, err
		}
		if _, _, err := comm.Recv(ctx, dest, tagEcho); err != nil {
			return location.ClockOffset{}, err
		}
		tB := now()
		samples[i] = Sample{TA: tA, TB: tB}
	}

	idx, _ := ChooseBest(samples)
	syncMaster := MasterSyncTime(samples[idx])

	payload := make([]byte, 16)
	binary.LittleEndian.PutUint64(payload[0:8], floatBits(syncMaster))
	binary.LittleEndian.PutUint64(payload[8:16], uint64(idx))
	if err := comm.Send(ctx, dest, tagResult, ipc.ValueFloat64, payload); err != nil {
		return location.ClockOffset{}, err
	}

	return location.ClockOffset{OffsetTime: now(), Offset: 0, StdDev: 0}, nil
}

// RunWorker executes the worker side of the protocol with master rank
// src: it replies to each ping with an echo, remembers the receive
// time per round, then applies the master's chosen (syncMaster, index)
// to compute this rank's clock offset (spec §4.7 step 6). now supplies
// worker-side timestamps.
func RunWorker(ctx context.Context, comm ipc.Comm, src int, now Clock) (location.ClockOffset, error) {
	tWs := make([]float64, PingPongRounds)
	for i := 0; i < PingPongRounds; i++ {
		if _, _, err := comm.Recv(ctx, src, tagPing); err != nil {
			return location.ClockOffset{}, err
		}
		tWs[i] = now()
		if err := comm.Send(ctx, src, tagEcho, ipc.ValueFloat64, nil); err != nil {
			return location.ClockOffset{}, err
		}
	}

	_, payload, err := comm.Recv(ctx, src, tagResult)
	if err != nil {
		return location.ClockOffset{}, err
	}
	syncMaster := floatFromBits(binary.LittleEndian.Uint64(payload[0:8]))
	idx := int(binary.LittleEndian.Uint64(payload[8:16]))

	offset := WorkerOffset(syncMaster, Sample{TW: tWs[idx]})
	return location.ClockOffset{OffsetTime: now(), Offset: offset, StdDev: 0}, nil
}

// Sync picks the master or worker role from comm's rank and size. With
// a single-rank communicator it short-circuits to the spec's mockup
// fallback: offset 0, offset_time = current (spec §4.7).
func Sync(ctx context.Context, comm ipc.Comm, now Clock) (location.ClockOffset, error) {
	if comm.Size() == 1 {
		return location.ClockOffset{OffsetTime: now(), Offset: 0, StdDev: 0}, nil
	}
	if comm.Rank() == 0 {
		// Rank 0 synchronizes every worker in turn; its own offset is
		// defined as 0 (it is the reference clock).
		for dest := 1; dest < comm.Size(); dest++ {
			if _, err := RunMaster(ctx, comm, dest, now); err != nil {
				return location.ClockOffset{}, err
			}
		}
		return location.ClockOffset{OffsetTime: now(), Offset: 0, StdDev: 0}, nil
	}
	return RunWorker(ctx, comm, 0, now)
}

func floatBits(f float64) uint64     { return math.Float64bits(f) }
func floatFromBits(b uint64) float64 { return math.Float64frombits(b) }

// GlobalEpoch computes the measurement's global begin/end timestamps
// (spec §4.7): each rank's (localBegin, localEnd), already adjusted by
// its clock offset, is reduced via MIN (begin) and MAX (end) to every
// rank. Rank 0 asserts end > begin.
//
// Float64bits preserves ordering under MIN/MAX for non-negative
// values, which every timestamp in this domain is, so the uint64
// ipc.Comm.Reduce can carry float64 epoch bounds directly.
func GlobalEpoch(ctx context.Context, comm ipc.Comm, localBegin, localEnd float64) (begin, end float64, err error) {
	beginBits, err := comm.Reduce(ctx, ipc.ReduceMin, floatBits(localBegin))
	if err != nil {
		return 0, 0, err
	}
	endBits, err := comm.Reduce(ctx, ipc.ReduceMax, floatBits(localEnd))
	if err != nil {
		return 0, 0, err
	}
	begin, end = floatFromBits(beginBits), floatFromBits(endBits)
	if comm.Rank() == 0 && !(end > begin) {
		return begin, end, errNonPositiveEpoch
	}
	return begin, end, nil
}
