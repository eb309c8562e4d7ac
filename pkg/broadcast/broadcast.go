// Package broadcast implements the gossip engine for the broadcast
// workload: a monotonically growing value set disseminated to topology
// neighbors, with per-peer frontiers retried every round until a positive
// acknowledgment. Convergence relies on relay: a value learned from one
// peer is marked pending for every other neighbor, so it crosses the graph
// hop by hop even when the adjacency is sparse.
package broadcast

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftlabs/murmur/internal/telemetry"
	"github.com/driftlabs/murmur/pkg/node"
	"github.com/driftlabs/murmur/pkg/protocol"
	"github.com/driftlabs/murmur/pkg/store"
	"github.com/driftlabs/murmur/pkg/topology"
)

type broadcastBody struct {
	Type    string `json:"type"`
	Message int64  `json:"message"`
}

type readOkBody struct {
	Type     string  `json:"type"`
	Messages []int64 `json:"messages"`
}

type topologyBody struct {
	Type     string              `json:"type"`
	Topology map[string][]string `json:"topology"`
}

type gossipBody struct {
	Type     string  `json:"type"`
	Messages []int64 `json:"messages"`
}

// Engine wires the broadcast handlers and the periodic gossip timer onto a
// node runtime.
type Engine struct {
	node  *node.Node
	topo  *topology.Topology
	store *store.Store
	log   *zap.Logger

	interval time.Duration

	mu       sync.Mutex // guards started
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New registers the workload's handlers on n. Call Start to begin gossip
// rounds and Stop when the runtime loop returns.
func New(n *node.Node) *Engine {
	e := &Engine{
		node:     n,
		topo:     topology.New(),
		store:    store.New(),
		log:      n.Config().Logger,
		interval: n.Config().GossipInterval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}

	n.Handle("init", e.handleInit)
	n.Handle("topology", e.handleTopology)
	n.Handle("broadcast", e.handleBroadcast)
	n.Handle("read", e.handleRead)
	n.Handle("gossip", e.handleGossip)
	return e
}

// Store exposes the value set for inspection in tests.
func (e *Engine) Store() *store.Store { return e.store }

// Topology exposes the peer view for inspection in tests.
func (e *Engine) Topology() *topology.Topology { return e.topo }

// Start launches the gossip timer loop. Calling it again is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	go e.run()
}

// Stop halts the timer loop and waits for it to exit; without a prior
// Start it returns immediately. In-flight gossip sends are not cancelled;
// their frontier entries simply stay pending.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started {
		<-e.doneCh
	}
}

func (e *Engine) run() {
	defer close(e.doneCh)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.gossipRound()
		case <-e.stopCh:
			return
		}
	}
}

// gossipRound sends each peer its pending values. Sends are fire-and-forget
// from the timer's point of view: each runs on its own goroutine and the
// frontier is drained only when the peer acknowledges, so an unacknowledged
// batch is retried on a later round.
func (e *Engine) gossipRound() {
	telemetry.GossipRounds.Inc()
	for _, peer := range e.store.PendingPeers() {
		vals := e.store.Pending(peer)
		if len(vals) == 0 {
			continue
		}
		go e.gossipTo(peer, vals)
	}
}

func (e *Engine) gossipTo(peer string, vals []int64) {
	_, body, err := e.node.SyncRPC(context.Background(), peer, gossipBody{
		Type:     "gossip",
		Messages: vals,
	})
	if err != nil {
		// Timeout or partition. Leave the frontier pending; the next
		// round retries the batch.
		e.log.Debug("gossip not acknowledged",
			zap.String("peer", peer),
			zap.Int("values", len(vals)),
			zap.Error(err))
		return
	}
	if body.Type != "gossip_ok" {
		e.log.Warn("unexpected gossip reply",
			zap.String("peer", peer), zap.String("type", body.Type))
		return
	}
	// Drain only what was sent; values that became pending for this peer
	// while the batch was in flight stay queued.
	e.store.Drain(peer, vals)
}

// learn records a value and queues it for every neighbor except the one it
// came from. Known values are ignored so duplicate deliveries are no-ops.
func (e *Engine) learn(v int64, from string) {
	if e.store.Add(v, e.topo.Neighbors(), from) {
		telemetry.StoreSize.Set(float64(e.store.Len()))
	}
}

func (e *Engine) handleInit(env protocol.Envelope, body protocol.Body) error {
	e.topo.Init(e.node.ID(), e.node.NodeIDs())
	return nil
}

// replyMalformed answers a request whose payload failed to decode with the
// standard error body, so the client learns immediately instead of waiting
// out its timeout.
func (e *Engine) replyMalformed(env protocol.Envelope, body protocol.Body, err error) error {
	return e.node.Reply(env, body, protocol.ErrorBody{
		Type: "error",
		Code: protocol.ErrCodeMalformedRequest,
		Text: err.Error(),
	})
}

func (e *Engine) handleTopology(env protocol.Envelope, body protocol.Body) error {
	var req topologyBody
	if err := protocol.UnmarshalBody(env.Body, &req); err != nil {
		return e.replyMalformed(env, body, err)
	}
	// Last write wins: a resent topology replaces the stored map outright.
	e.topo.Replace(req.Topology)
	e.log.Info("topology replaced",
		zap.Strings("neighbors", e.topo.Neighbors()))
	return e.node.Reply(env, body, protocol.Body{Type: "topology_ok"})
}

func (e *Engine) handleBroadcast(env protocol.Envelope, body protocol.Body) error {
	var req broadcastBody
	if err := protocol.UnmarshalBody(env.Body, &req); err != nil {
		return e.replyMalformed(env, body, err)
	}
	// Acknowledge immediately; replication is asynchronous via gossip.
	e.learn(req.Message, env.Src)
	return e.node.Reply(env, body, protocol.Body{Type: "broadcast_ok"})
}

func (e *Engine) handleRead(env protocol.Envelope, body protocol.Body) error {
	return e.node.Reply(env, body, readOkBody{
		Type:     "read_ok",
		Messages: e.store.Snapshot(),
	})
}

func (e *Engine) handleGossip(env protocol.Envelope, body protocol.Body) error {
	var req gossipBody
	if err := protocol.UnmarshalBody(env.Body, &req); err != nil {
		return e.replyMalformed(env, body, err)
	}
	for _, v := range req.Messages {
		e.learn(v, env.Src)
	}
	// Always acknowledge, even when every value was already known, so the
	// sender can drain its frontier.
	return e.node.Reply(env, body, protocol.Body{Type: "gossip_ok"})
}
