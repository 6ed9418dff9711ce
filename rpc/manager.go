package rpc

import (
	"encoding/gob"
	"log"
	"net"
	"net/rpc"

	"github.com/google/uuid"
	"github.com/qrilka/kontiki/raft"
)

// Envelope carries one protocol message between nodes together with
// the sender's identity.
type Envelope struct {
	From    uuid.UUID
	Message raft.Message
}

func init() {
	// net/rpc speaks gob, and Envelope.Message is an interface; the
	// concrete message types must be registered up front.
	gob.Register(&raft.RequestVote{})
	gob.Register(&raft.RequestVoteResponse{})
	gob.Register(&raft.AppendEntries{})
	gob.Register(&raft.AppendEntriesResponse{})
}

// Sink receives inbound messages from peers. *raft.Node implements it.
type Sink interface {
	Submit(from uuid.UUID, ev raft.Event)
}

// Manager is the implementation of the raft.Transport interface using
// golang's net/rpc package. Sends are fire-and-forget: failures are
// logged and recovery is left to the next heartbeat round.
type Manager struct {
	self     uuid.UUID
	peers    map[uuid.UUID]*Peer
	listener net.Listener
}

var _ raft.Transport = (*Manager)(nil)

func NewManager(self raft.Server, cluster []raft.Server) *Manager {
	manager := &Manager{
		self:  self.ID,
		peers: make(map[uuid.UUID]*Peer),
	}
	for _, server := range cluster {
		if server.ID == self.ID {
			continue
		}
		manager.peers[server.ID] = NewPeer(server.NetAddress, server.ID)
	}
	return manager
}

func (manager *Manager) Send(to uuid.UUID, msg raft.Message) {
	peer, ok := manager.peers[to]
	if !ok {
		log.Printf("%v: no peer with ID %v\n", manager.self, to)
		return
	}
	go func() {
		if err := peer.deliver(&Envelope{From: manager.self, Message: msg}); err != nil {
			log.Printf("%v: delivering %T to %v: %v\n", manager.self, msg, to, err)
		}
	}()
}

func (manager *Manager) Broadcast(msg raft.Message) {
	for id := range manager.peers {
		manager.Send(id, msg)
	}
}

// nodeService is the net/rpc receiver exposed to peers.
type nodeService struct {
	sink Sink
}

func (service *nodeService) Deliver(args *Envelope, ack *bool) error {
	service.sink.Submit(args.From, args.Message)
	*ack = true
	return nil
}

// Start listens at the given address and serves inbound messages into
// sink. It blocks until Stop closes the listener.
func (manager *Manager) Start(address raft.ServerAddress, sink Sink) error {
	server := rpc.NewServer()
	if err := server.RegisterName("Node", &nodeService{sink: sink}); err != nil {
		return err
	}
	listener, err := net.Listen("tcp", string(address))
	if err != nil {
		return err
	}
	manager.listener = listener
	server.Accept(listener)
	return nil
}

// Stop closes the listener; in-flight deliveries are abandoned.
func (manager *Manager) Stop() error {
	if manager.listener == nil {
		return nil
	}
	return manager.listener.Close()
}
