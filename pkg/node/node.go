// Package node is the messaging runtime: it reads envelopes from the input
// stream, dispatches them to registered handlers, correlates request/reply
// pairs, and serializes output lines.
package node

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftlabs/murmur/internal/telemetry"
	"github.com/driftlabs/murmur/pkg/protocol"
)

// ErrHandshake is returned by Run when a well-formed non-init message
// arrives before initialization. Node identity is undefined at that point,
// so the process refuses to proceed.
var ErrHandshake = errors.New("received message before init handshake")

// HandlerFunc processes one inbound message. The envelope is the full wire
// message; body carries the pre-parsed common fields. Errors are logged and
// contained to that message.
type HandlerFunc func(env protocol.Envelope, body protocol.Body) error

// Node drives the read-dispatch-write loop: one JSON line in, zero or more
// JSON lines out. It owns node identity, the handler table, the pending-RPC
// table, and output serialization.
type Node struct {
	// Stdin and Stdout default to the process streams and are injectable
	// for tests.
	Stdin  io.Reader
	Stdout io.Writer

	cfg *Config
	log *zap.Logger

	mu       sync.RWMutex
	id       string
	nodeIDs  []string
	handlers map[string]HandlerFunc

	wmu sync.Mutex // one encoded line at a time on Stdout

	pmu     sync.Mutex
	pending map[int64]chan rpcReply
	nextID  int64

	wg sync.WaitGroup
}

func New(cfg *Config) *Node {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		cfg:      cfg,
		log:      log,
		handlers: make(map[string]HandlerFunc),
		pending:  make(map[int64]chan rpcReply),
	}
}

// Config returns the node's runtime configuration.
func (n *Node) Config() *Config { return n.cfg }

// ID returns the node id assigned by the harness; empty before init.
func (n *Node) ID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.id
}

// NodeIDs returns the full cluster membership from the init handshake.
func (n *Node) NodeIDs() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]string(nil), n.nodeIDs...)
}

// Handle registers a handler for a body type. Registration happens before
// Run; registering the same type twice is a programming error.
func (n *Node) Handle(msgType string, h HandlerFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.handlers[msgType]; ok {
		panic(fmt.Sprintf("node: duplicate handler for %q", msgType))
	}
	n.handlers[msgType] = h
}

// Run reads lines until the input stream closes. The first well-formed
// message must be the init handshake; everything after is dispatched to
// registered handlers. Malformed lines and per-handler errors are logged
// and skipped, never fatal.
func (n *Node) Run() error {
	scanner := bufio.NewScanner(n.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	initialized := false
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		env, body, err := protocol.Decode(line)
		if err != nil {
			telemetry.DecodeErrors.Inc()
			n.log.Warn("skipping undecodable line", zap.Error(err))
			continue
		}
		telemetry.MessagesReceived.WithLabelValues(body.Type).Inc()

		if !initialized {
			if body.Type != "init" {
				n.log.Error("handshake violation",
					zap.String("type", body.Type), zap.String("src", env.Src))
				return fmt.Errorf("%w: got %q", ErrHandshake, body.Type)
			}
			if err := n.handleInit(env, body); err != nil {
				return err
			}
			initialized = true
			continue
		}

		// A resent init is handled idempotently: identity is replaced
		// and acknowledged again.
		if body.Type == "init" {
			if err := n.handleInit(env, body); err != nil {
				n.log.Error("re-init failed", zap.Error(err))
			}
			continue
		}

		n.dispatch(env, body)
	}

	n.wg.Wait()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// handleInit runs the handshake: record identity, let an application init
// handler seed its state, then acknowledge. A malformed init is the one
// unrecoverable startup failure. A repeated init replaces identity
// idempotently and is acknowledged again.
func (n *Node) handleInit(env protocol.Envelope, body protocol.Body) error {
	var init protocol.InitBody
	if err := unmarshalBody(env, &init); err != nil {
		return fmt.Errorf("malformed init: %w", err)
	}
	if init.NodeID == "" {
		return fmt.Errorf("malformed init: empty node_id")
	}

	n.mu.Lock()
	n.id = init.NodeID
	n.nodeIDs = append([]string(nil), init.NodeIDs...)
	onInit := n.handlers["init"]
	n.mu.Unlock()

	n.log.Info("initialized",
		zap.String("node", init.NodeID),
		zap.Strings("node_ids", init.NodeIDs))

	// Application init handlers run before init_ok so nothing
	// topology-dependent is dispatched against uninitialized state.
	if onInit != nil {
		if err := onInit(env, body); err != nil {
			return fmt.Errorf("init handler: %w", err)
		}
	}

	return n.Reply(env, body, protocol.Body{Type: "init_ok"})
}

// dispatch routes one post-handshake message. Replies settle pending RPCs
// on the loop goroutine (non-blocking); everything else runs its handler on
// its own goroutine so a suspended RPC never stalls the read loop.
func (n *Node) dispatch(env protocol.Envelope, body protocol.Body) {
	if body.InReplyTo != 0 {
		n.settleRPC(env, body)
		return
	}

	n.mu.RLock()
	h, ok := n.handlers[body.Type]
	n.mu.RUnlock()
	if !ok {
		telemetry.UnknownTypes.Inc()
		n.log.Warn("no handler for message type",
			zap.String("type", body.Type), zap.String("src", env.Src))
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		start := time.Now()
		if err := h(env, body); err != nil {
			n.log.Error("handler failed",
				zap.String("type", body.Type),
				zap.String("src", env.Src),
				zap.Error(err))
		}
		telemetry.ObserveHandle(body.Type, time.Since(start))
	}()
}

// Send writes a fire-and-forget message carrying no msg_id.
func (n *Node) Send(dest string, body any) error {
	raw, typ, err := protocol.MarshalBody(body, 0, 0)
	if err != nil {
		return err
	}
	return n.write(dest, typ, raw)
}

// Reply answers a request, stamping a fresh msg_id and echoing the
// request's msg_id as in_reply_to.
func (n *Node) Reply(req protocol.Envelope, reqBody protocol.Body, body any) error {
	raw, typ, err := protocol.MarshalBody(body, n.nextMsgID(), reqBody.MsgID)
	if err != nil {
		return err
	}
	return n.write(req.Src, typ, raw)
}

// write encodes and emits one envelope. The write mutex guarantees a line
// is never split or interleaved with another.
func (n *Node) write(dest, msgType string, rawBody []byte) error {
	env := protocol.Envelope{Src: n.ID(), Dest: dest, Body: rawBody}
	line, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	telemetry.MessagesSent.WithLabelValues(msgType).Inc()

	n.wmu.Lock()
	defer n.wmu.Unlock()
	if _, err := n.Stdout.Write(line); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// unmarshalBody decodes an envelope's body into a workload-specific type.
func unmarshalBody(env protocol.Envelope, v any) error {
	return protocol.UnmarshalBody(env.Body, v)
}
