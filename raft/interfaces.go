package raft

import (
	"github.com/google/uuid"
)

// LogStore is the interface that when implemented can be used as a
// store for the replicated log of one raft node. LogStore is
// responsible for guaranteeing persistence of entries across node
// restarts.
type LogStore interface {
	// LastEntry returns the entry with the highest index, or nil if
	// the log is empty.
	LastEntry() (*LogEntry, error)
	// EntryAt returns the entry at the given index, or nil if no such
	// entry exists. Every index up to the most recent LastEntry's
	// index must resolve to an entry.
	EntryAt(index uint64) (*LogEntry, error)
	// Append stores the given entries at their indexes, overwriting
	// any entries already present there. Entries must not open a gap
	// beyond the current last index.
	Append(entries ...LogEntry) error
	// TruncateFrom drops every entry with an index at or above the
	// given one.
	TruncateFrom(index uint64) error
	Close() error
}

// StateStore implementations can be used as general-purpose stores for
// storing non-volatile data (such as a node's term and vote).
type StateStore interface {
	Set(key, value []byte) error
	Get(key []byte) ([]byte, error)
	GetDefault(key []byte, defaultVal []byte) ([]byte, error)
	Close() error
}

// Transport delivers protocol messages between nodes. Sends are
// fire-and-forget: the protocol recovers lost messages through the
// next heartbeat round, not through transport-level retries.
type Transport interface {
	Send(to uuid.UUID, msg Message)
	Broadcast(msg Message)
}

// TimerService rearms the two protocol timers. Both calls are
// idempotent; rearming an already armed timer restarts it.
type TimerService interface {
	ResetElectionTimer()
	ResetHeartbeatTimer()
}

// Env bundles the collaborators a role handler needs. Handlers are
// pure transitions over (role, event, Env): no call in Env blocks on
// the network and nothing in Env calls back into the handler.
type Env struct {
	Config    *ClusterConfig
	Log       LogStore
	State     StateStore
	Transport Transport
	Timers    TimerService
}

// Role is one of the three consensus roles (follower, candidate,
// leader). Handle interprets a single event and returns the role to
// continue with, which may be the receiver itself.
type Role interface {
	Handle(env Env, from uuid.UUID, ev Event) (Role, error)
}
