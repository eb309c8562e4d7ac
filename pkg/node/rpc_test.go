package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlabs/murmur/pkg/protocol"
)

func TestRPCRoundTrip(t *testing.T) {
	h := startNode(t, nil)
	h.send(t, initLine)
	h.recv(t)

	type result struct {
		body protocol.Body
		err  error
	}
	done := make(chan result, 1)
	go func() {
		_, body, err := h.node.RPC(context.Background(), "n2", protocol.Body{Type: "ping"})
		done <- result{body, err}
	}()

	env, req := h.recv(t)
	require.Equal(t, "ping", req.Type)
	require.Equal(t, "n2", env.Dest)
	require.NotZero(t, req.MsgID)

	h.send(t, fmt.Sprintf(
		`{"src":"n2","dest":"n1","body":{"type":"pong","in_reply_to":%d}}`, req.MsgID))

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "pong", r.body.Type)
	assert.Equal(t, req.MsgID, r.body.InReplyTo)
}

func TestRPCDoesNotBlockTheLoop(t *testing.T) {
	h := startNode(t, func(n *Node) {
		n.Handle("probe", func(env protocol.Envelope, body protocol.Body) error {
			return n.Reply(env, body, protocol.Body{Type: "probe_ok"})
		})
	})
	h.send(t, initLine)
	h.recv(t)

	go func() {
		_, _, _ = h.node.RPC(context.Background(), "n2", protocol.Body{Type: "ping"})
	}()
	_, req := h.recv(t)
	require.Equal(t, "ping", req.Type)

	// An unrelated message is served while the RPC is outstanding.
	h.send(t, `{"src":"c1","dest":"n1","body":{"type":"probe","msg_id":5}}`)
	_, body := h.recv(t)
	assert.Equal(t, "probe_ok", body.Type)

	// Settle the RPC so the goroutine exits.
	h.send(t, fmt.Sprintf(
		`{"src":"n2","dest":"n1","body":{"type":"pong","in_reply_to":%d}}`, req.MsgID))
}

func TestRPCTimeoutAndLateReply(t *testing.T) {
	h := startNode(t, func(n *Node) {
		n.Handle("probe", func(env protocol.Envelope, body protocol.Body) error {
			return n.Reply(env, body, protocol.Body{Type: "probe_ok"})
		})
	})
	h.send(t, initLine)
	h.recv(t)

	_, _, err := h.node.SyncRPC(context.Background(), "n2", protocol.Body{Type: "ping"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	_, req := h.recv(t)
	require.Equal(t, "ping", req.Type)

	// A reply arriving after giveup is dropped silently; the node keeps
	// serving.
	h.send(t, fmt.Sprintf(
		`{"src":"n2","dest":"n1","body":{"type":"pong","in_reply_to":%d}}`, req.MsgID))
	h.send(t, `{"src":"c1","dest":"n1","body":{"type":"probe","msg_id":9}}`)

	_, body := h.recv(t)
	assert.Equal(t, "probe_ok", body.Type)
	assert.Equal(t, int64(9), body.InReplyTo)
}

func TestConcurrentRPCsGetDistinctMsgIDs(t *testing.T) {
	h := startNode(t, nil)
	h.send(t, initLine)
	h.recv(t)

	const calls = 8
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = h.node.RPC(ctx, "n2", protocol.Body{Type: "ping"})
		}()
	}

	seen := map[int64]bool{}
	for i := 0; i < calls; i++ {
		_, req := h.recv(t)
		require.Equal(t, "ping", req.Type)
		assert.False(t, seen[req.MsgID], "msg_id %d reused", req.MsgID)
		seen[req.MsgID] = true
	}
	cancel()
	wg.Wait()
}

func TestUncorrelatedReplyIsDropped(t *testing.T) {
	h := startNode(t, func(n *Node) {
		n.Handle("probe", func(env protocol.Envelope, body protocol.Body) error {
			return n.Reply(env, body, protocol.Body{Type: "probe_ok"})
		})
	})
	h.send(t, initLine)
	h.recv(t)

	h.send(t, `{"src":"n2","dest":"n1","body":{"type":"pong","in_reply_to":12345}}`)
	h.send(t, `{"src":"c1","dest":"n1","body":{"type":"probe","msg_id":2}}`)

	_, body := h.recv(t)
	assert.Equal(t, "probe_ok", body.Type)
}
