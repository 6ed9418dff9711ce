package raft

import (
	"github.com/google/uuid"
)

// LogEntry is one replicated log record. Index starts at 1; index 0 and
// term 0 are sentinels meaning "no entry" / "no term".
type LogEntry struct {
	Index uint64
	Term  uint64
	Data  []byte
}

// Event is the closed set of inputs a role can receive: the four
// protocol messages plus the two local timer expiries. Handlers
// dispatch with an exhaustive type switch, so the set is sealed.
type Event interface {
	isEvent()
}

// Message is the subset of events that travel between nodes.
type Message interface {
	Event
	isMessage()
}

// RequestVote canvasses for a vote in the candidate's term
// (Section 5.2).
type RequestVote struct {
	Term         uint64
	CandidateID  uuid.UUID
	LastLogIndex uint64
	LastLogTerm  uint64
}

type RequestVoteResponse struct {
	Term        uint64
	VoteGranted bool
}

// AppendEntries carries log entries from the leader, and doubles as the
// heartbeat when Entries is empty (Section 5.3).
type AppendEntries struct {
	Term         uint64
	LeaderID     uuid.UUID
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []LogEntry
	CommitIndex  uint64
}

// AppendEntriesResponse acknowledges (or rejects) an AppendEntries.
// On success LastIndex is the highest index the follower's log provably
// shares with the leader's.
type AppendEntriesResponse struct {
	Term      uint64
	Success   bool
	LastIndex uint64
}

// ElectionTimeout fires when no leader has been heard from for a full
// randomized election interval.
type ElectionTimeout struct{}

// HeartbeatTimeout paces the leader's replication rounds.
type HeartbeatTimeout struct{}

func (*RequestVote) isEvent()           {}
func (*RequestVoteResponse) isEvent()   {}
func (*AppendEntries) isEvent()         {}
func (*AppendEntriesResponse) isEvent() {}
func (*ElectionTimeout) isEvent()       {}
func (*HeartbeatTimeout) isEvent()      {}

func (*RequestVote) isMessage()           {}
func (*RequestVoteResponse) isMessage()   {}
func (*AppendEntries) isMessage()         {}
func (*AppendEntriesResponse) isMessage() {}
