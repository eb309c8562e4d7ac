// Package uniqueid implements coordination-free id minting: the node id
// paired with a process-local counter is unique across the cluster without
// any inter-node traffic.
package uniqueid

import (
	"fmt"
	"sync/atomic"

	"github.com/driftlabs/murmur/pkg/node"
	"github.com/driftlabs/murmur/pkg/protocol"
)

type generateOkBody struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Register wires the generate handler onto a node runtime.
func Register(n *node.Node) {
	var counter int64
	n.Handle("generate", func(env protocol.Envelope, body protocol.Body) error {
		c := atomic.AddInt64(&counter, 1)
		return n.Reply(env, body, generateOkBody{
			Type: "generate_ok",
			ID:   fmt.Sprintf("%s/%d", n.ID(), c),
		})
	})
}
