// Package echo implements the stateless echo workload: every echo request
// is answered with an echo_ok carrying the identical payload.
package echo

import (
	"encoding/json"

	"github.com/driftlabs/murmur/pkg/node"
	"github.com/driftlabs/murmur/pkg/protocol"
)

type echoBody struct {
	Type string          `json:"type"`
	Echo json.RawMessage `json:"echo,omitempty"`
}

// Register wires the echo handler onto a node runtime.
func Register(n *node.Node) {
	n.Handle("echo", func(env protocol.Envelope, body protocol.Body) error {
		var req echoBody
		if err := protocol.UnmarshalBody(env.Body, &req); err != nil {
			return err
		}
		return n.Reply(env, body, echoBody{Type: "echo_ok", Echo: req.Echo})
	})
}
