package rpc

import (
	"io"
	"net/rpc"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qrilka/kontiki/raft"
)

// Peer is one outbound connection to a cluster member. Connections are
// lazy: no dial happens until the first message is delivered.
type Peer struct {
	id      uuid.UUID
	address raft.ServerAddress

	mu     sync.Mutex
	client *rpc.Client
}

// NewPeer creates a Peer instance with lazy initialization. The actual
// connection is not established until an actual delivery takes place.
func NewPeer(address raft.ServerAddress, id uuid.UUID) *Peer {
	return &Peer{
		id:      id,
		address: address,
	}
}

// call takes care of automatically re-trying on transient failures
func (peer *Peer) call(method string, args interface{}, result interface{}) (err error) {
	peer.mu.Lock()
	defer peer.mu.Unlock()
	for i := 0; i < 3; i++ {
		if peer.client == nil {
			if peer.client, err = rpc.Dial("tcp", string(peer.address)); err != nil {
				// retry with one-second delay
				peer.client = nil
				time.Sleep(time.Second)
				continue
			}
		}
		if err = peer.client.Call(method, args, result); err == io.EOF {
			// likely that connection timed out, retry immediately
			peer.client.Close()
			peer.client = nil
			continue
		}
		break
	}
	return
}

func (peer *Peer) GetID() uuid.UUID {
	return peer.id
}

func (peer *Peer) deliver(envelope *Envelope) error {
	var ack bool
	return peer.call("Node.Deliver", envelope, &ack)
}
