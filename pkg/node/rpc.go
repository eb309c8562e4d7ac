package node

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/driftlabs/murmur/internal/telemetry"
	"github.com/driftlabs/murmur/pkg/protocol"
)

// rpcReply is what a waiting RPC caller receives when a correlated reply
// arrives: the full envelope plus its pre-parsed common fields.
type rpcReply struct {
	env  protocol.Envelope
	body protocol.Body
}

// nextMsgID hands out the node's strictly increasing msg_id sequence,
// starting at 1 so an unset id is distinguishable on the wire. Never reset.
func (n *Node) nextMsgID() int64 {
	return atomic.AddInt64(&n.nextID, 1)
}

// RPC sends a correlated request and suspends the calling goroutine until
// the matching reply arrives or ctx expires. The read loop keeps serving
// unrelated messages while the caller waits. On expiry the pending entry
// is removed and the caller sees ctx's error; the caller owns any retry.
func (n *Node) RPC(ctx context.Context, dest string, body any) (protocol.Envelope, protocol.Body, error) {
	id := n.nextMsgID()
	raw, typ, err := protocol.MarshalBody(body, id, 0)
	if err != nil {
		return protocol.Envelope{}, protocol.Body{}, err
	}

	ch := make(chan rpcReply, 1)
	n.pmu.Lock()
	n.pending[id] = ch
	n.pmu.Unlock()

	if err := n.write(dest, typ, raw); err != nil {
		n.forget(id)
		return protocol.Envelope{}, protocol.Body{}, err
	}

	select {
	case r := <-ch:
		return r.env, r.body, nil
	case <-ctx.Done():
		n.forget(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			telemetry.RPCTimeouts.Inc()
		}
		return protocol.Envelope{}, protocol.Body{}, fmt.Errorf("rpc to %s: %w", dest, ctx.Err())
	}
}

// SyncRPC is RPC bounded by the configured timeout.
func (n *Node) SyncRPC(ctx context.Context, dest string, body any) (protocol.Envelope, protocol.Body, error) {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.RPCTimeout)
	defer cancel()
	return n.RPC(ctx, dest, body)
}

// settleRPC routes an inbound reply to the one waiter whose msg_id matches.
// A late or duplicate reply finds no entry and is dropped with a log line.
func (n *Node) settleRPC(env protocol.Envelope, body protocol.Body) {
	n.pmu.Lock()
	ch, ok := n.pending[body.InReplyTo]
	if ok {
		delete(n.pending, body.InReplyTo)
	}
	n.pmu.Unlock()

	if !ok {
		n.log.Debug("dropping uncorrelated reply",
			zap.Int64("in_reply_to", body.InReplyTo),
			zap.String("src", env.Src),
			zap.String("type", body.Type))
		return
	}
	ch <- rpcReply{env: env, body: body}
}

func (n *Node) forget(id int64) {
	n.pmu.Lock()
	delete(n.pending, id)
	n.pmu.Unlock()
}
