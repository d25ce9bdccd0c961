// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package natsipc implements ipc.Comm over NATS: a development/test
// binding for the clock-sync, unification, and global-epoch-reduction
// components (spec §4.7, §4.8) to run against a cluster of real OS
// processes without an MPI dependency.
//
// Grounded on the teacher's pkg/nats/client.go, which wraps nats.go
// with the same connect/subscribe/publish shape this package reuses
// for point-to-point Send/Recv and a Reduce built from one publish +
// N-1 subscriptions on a rank-0 collection subject.
package natsipc

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/score-p/scorep-measurement-core/internal/diag"
	"github.com/score-p/scorep-measurement-core/internal/ipc"
)

// Comm is a NATS-backed ipc.Comm for a fixed-size group of ranks, each
// subscribed to its own inbox subject under a shared group prefix.
type Comm struct {
	conn  *nats.Conn
	group string
	size  int
	rank  int

	mu    sync.Mutex
	inbox map[int]chan *nats.Msg // tag -> delivery channel
	sub   *nats.Subscription
}

func subject(group string, rank, tag int) string {
	return fmt.Sprintf("scorep.ipc.%s.%d.%d", group, rank, tag)
}

// Connect joins a Comm of the given size at the given rank, using conn
// for transport. group namespaces the subjects so multiple concurrent
// measurements can share one NATS server.
func Connect(conn *nats.Conn, group string, size, rank int) (*Comm, error) {
	c := &Comm{conn: conn, group: group, size: size, rank: rank, inbox: make(map[int]chan *nats.Msg)}

	sub, err := conn.Subscribe(subject(group, rank, -1)+".>", func(msg *nats.Msg) {
		c.deliver(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("natsipc: subscribe failed: %w", err)
	}
	c.sub = sub
	return c, nil
}

func (c *Comm) deliver(msg *nats.Msg) {
	var tag int
	fmt.Sscanf(msg.Header.Get("tag"), "%d", &tag)
	c.mu.Lock()
	ch, ok := c.inbox[tag]
	if !ok {
		ch = make(chan *nats.Msg, 8)
		c.inbox[tag] = ch
	}
	c.mu.Unlock()
	select {
	case ch <- msg:
	default:
		diag.Warn("natsipc: inbox full for tag ", tag, ", dropping message")
	}
}

func (c *Comm) Size() int { return c.size }
func (c *Comm) Rank() int { return c.rank }

// Send publishes data to dest's inbox subject, tagged tag and typ.
func (c *Comm) Send(ctx context.Context, dest int, tag int, typ ipc.ValueType, data []byte) error {
	msg := nats.NewMsg(subject(c.group, dest, -1) + ".msg")
	msg.Header.Set("tag", fmt.Sprint(tag))
	msg.Header.Set("type", fmt.Sprint(int(typ)))
	msg.Header.Set("from", fmt.Sprint(c.rank))
	msg.Data = data
	if err := c.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("natsipc: send to rank %d failed: %w", dest, err)
	}
	return nil
}

// Recv blocks until a message tagged tag arrives or ctx is done. src is
// accepted for interface symmetry but not filtered on: subjects here
// are per-destination, not per-source, so a tag uniquely identifies
// the expected message within a collective step.
func (c *Comm) Recv(ctx context.Context, src int, tag int) (int, []byte, error) {
	c.mu.Lock()
	ch, ok := c.inbox[tag]
	if !ok {
		ch = make(chan *nats.Msg, 8)
		c.inbox[tag] = ch
	}
	c.mu.Unlock()

	select {
	case msg := <-ch:
		from := 0
		fmt.Sscanf(msg.Header.Get("from"), "%d", &from)
		return from, msg.Data, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

// Reduce implements the collective spec §4.7 needs for the global
// epoch: every non-zero rank sends its local value to rank 0 tagged
// reduceTag; rank 0 folds them with op and broadcasts the result back
// tagged reduceResultTag (one below reduceTag).
const (
	reduceTag       = -1000
	reduceResultTag = -1001
)

func (c *Comm) Reduce(ctx context.Context, op ipc.ReduceOp, local uint64) (uint64, error) {
	if c.size == 1 {
		return local, nil
	}

	if c.rank != 0 {
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, local)
		if err := c.Send(ctx, 0, reduceTag, ipc.ValueUint64, buf); err != nil {
			return 0, err
		}
		_, data, err := c.Recv(ctx, 0, reduceResultTag)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(data), nil
	}

	result := local
	for i := 1; i < c.size; i++ {
		_, data, err := c.Recv(ctx, -1, reduceTag)
		if err != nil {
			return 0, err
		}
		v := binary.LittleEndian.Uint64(data)
		result = apply(op, result, v)
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, result)
	for i := 1; i < c.size; i++ {
		if err := c.Send(ctx, i, reduceResultTag, ipc.ValueUint64, buf); err != nil {
			return 0, err
		}
	}
	return result, nil
}

func apply(op ipc.ReduceOp, a, b uint64) uint64 {
	switch op {
	case ipc.ReduceMin:
		if b < a {
			return b
		}
		return a
	case ipc.ReduceMax:
		if b > a {
			return b
		}
		return a
	case ipc.ReduceSum:
		return a + b
	default:
		return a
	}
}

// Close unsubscribes from this rank's inbox.
func (c *Comm) Close() error {
	if c.sub != nil {
		return c.sub.Unsubscribe()
	}
	return nil
}
