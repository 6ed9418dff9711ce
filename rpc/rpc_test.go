package rpc_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qrilka/kontiki/raft"
	"github.com/qrilka/kontiki/rpc"
	"github.com/stretchr/testify/assert"
)

type received struct {
	from uuid.UUID
	ev   raft.Event
}

type chanSink struct {
	events chan received
}

func (sink *chanSink) Submit(from uuid.UUID, ev raft.Event) {
	sink.events <- received{from: from, ev: ev}
}

func Test_ManagerDeliversMessagesBetweenNodes(t *testing.T) {
	cluster := []raft.Server{
		{ID: uuid.New(), NetAddress: "127.0.0.1:21001"},
		{ID: uuid.New(), NetAddress: "127.0.0.1:21002"},
	}
	a, b := cluster[0], cluster[1]

	sink := &chanSink{events: make(chan received, 16)}
	managerA := rpc.NewManager(a, cluster)
	go func() {
		assert.NoError(t, managerA.Start(a.NetAddress, sink))
	}()
	defer managerA.Stop()

	managerB := rpc.NewManager(b, cluster)
	managerB.Send(a.ID, &raft.RequestVote{
		Term:         7,
		CandidateID:  b.ID,
		LastLogIndex: 3,
		LastLogTerm:  2,
	})

	select {
	case got := <-sink.events:
		assert.Equal(t, b.ID, got.from)
		msg := got.ev.(*raft.RequestVote)
		assert.Equal(t, uint64(7), msg.Term)
		assert.Equal(t, b.ID, msg.CandidateID)
		assert.Equal(t, uint64(3), msg.LastLogIndex)
	case <-time.After(10 * time.Second):
		t.Fatal("message never delivered")
	}
}

func Test_ManagerBroadcastReachesAllPeers(t *testing.T) {
	cluster := []raft.Server{
		{ID: uuid.New(), NetAddress: "127.0.0.1:21003"},
		{ID: uuid.New(), NetAddress: "127.0.0.1:21004"},
		{ID: uuid.New(), NetAddress: "127.0.0.1:21005"},
	}

	sinks := make([]*chanSink, 2)
	for i, server := range cluster[:2] {
		server := server
		sink := &chanSink{events: make(chan received, 16)}
		sinks[i] = sink
		manager := rpc.NewManager(server, cluster)
		go func() {
			assert.NoError(t, manager.Start(server.NetAddress, sink))
		}()
		defer manager.Stop()
	}

	sender := rpc.NewManager(cluster[2], cluster)
	sender.Broadcast(&raft.AppendEntries{Term: 1, LeaderID: cluster[2].ID})

	for _, sink := range sinks {
		select {
		case got := <-sink.events:
			assert.Equal(t, cluster[2].ID, got.from)
			assert.Equal(t, uint64(1), got.ev.(*raft.AppendEntries).Term)
		case <-time.After(10 * time.Second):
			t.Fatal("broadcast never delivered")
		}
	}
}
