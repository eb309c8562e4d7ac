// inject writes a synthetic harness conversation for one node as JSON
// lines on stdout, for exercising a workload binary by hand:
//
//	go run ./cmd/inject -nodes 3 -broadcasts 10 | go run ./cmd/murmur broadcast
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
)

func main() {
	nodes := flag.Int("nodes", 3, "cluster size")
	broadcasts := flag.Int("broadcasts", 10, "broadcast requests to emit")
	reads := flag.Int("reads", 2, "read requests to emit")
	seed := flag.Int64("seed", 1, "value generator seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	msgID := 0
	next := func() int {
		msgID++
		return msgID
	}
	emit := func(src string, body map[string]any) {
		line, err := json.Marshal(map[string]any{"src": src, "dest": "n0", "body": body})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(append(line, '\n'))
	}

	ids := make([]string, *nodes)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
	}
	emit("c0", map[string]any{"type": "init", "msg_id": next(), "node_id": "n0", "node_ids": ids})

	// Ring topology over the cluster.
	adj := make(map[string][]string, *nodes)
	for i, id := range ids {
		adj[id] = []string{ids[(i+1)%*nodes], ids[(i+*nodes-1)%*nodes]}
	}
	emit("c0", map[string]any{"type": "topology", "msg_id": next(), "topology": adj})

	for i := 0; i < *broadcasts; i++ {
		emit("c1", map[string]any{"type": "broadcast", "msg_id": next(), "message": rng.Intn(1000)})
	}
	for i := 0; i < *reads; i++ {
		emit("c1", map[string]any{"type": "read", "msg_id": next()})
	}
}
