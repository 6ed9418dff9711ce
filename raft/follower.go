package raft

import (
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Follower is the passive role: it answers vote requests, accepts log
// entries from the current leader and waits on the election timer.
type Follower struct {
	term        uint64
	votedFor    *uuid.UUID
	leader      *uuid.UUID
	commitIndex uint64
}

var _ Role = (*Follower)(nil)

// becomeFollower seeds a follower at the given term. Any vote cast in
// an older term is meaningless in the new one, so it is cleared
// alongside.
func becomeFollower(env Env, term uint64) (*Follower, error) {
	log.Printf("%v: converting to follower at term %d\n", env.Config.SelfID(), term)
	if err := saveTerm(env.State, term); err != nil {
		return nil, err
	}
	if err := saveVotedFor(env.State, nil); err != nil {
		return nil, err
	}
	env.Timers.ResetElectionTimer()
	return &Follower{term: term}, nil
}

// restoreFollower rebuilds the follower role from persisted state on
// boot.
func restoreFollower(env Env) (*Follower, error) {
	term, err := loadTerm(env.State)
	if err != nil {
		return nil, err
	}
	votedFor, err := loadVotedFor(env.State)
	if err != nil {
		return nil, err
	}
	env.Timers.ResetElectionTimer()
	return &Follower{term: term, votedFor: votedFor}, nil
}

func (f *Follower) Handle(env Env, from uuid.UUID, ev Event) (Role, error) {
	switch ev := ev.(type) {
	case *RequestVote:
		return f.onRequestVote(env, from, ev)
	case *RequestVoteResponse:
		// Not canvassing; a stale response from an old candidacy.
		return f, nil
	case *AppendEntries:
		return f.onAppendEntries(env, from, ev)
	case *AppendEntriesResponse:
		// Only a leader tracks replication state.
		return f, nil
	case *ElectionTimeout:
		return becomeCandidate(env, f.term+1)
	case *HeartbeatTimeout:
		// Only a leader heartbeats.
		return f, nil
	default:
		panic(fmt.Sprintf("raft: unhandled event type %T", ev))
	}
}

// adoptTerm advances the follower's term, dropping the vote cast in
// the old one.
func (f *Follower) adoptTerm(env Env, term uint64) error {
	f.term = term
	f.votedFor = nil
	f.leader = nil
	if err := saveTerm(env.State, term); err != nil {
		return err
	}
	return saveVotedFor(env.State, nil)
}

func (f *Follower) onRequestVote(env Env, from uuid.UUID, msg *RequestVote) (Role, error) {
	if msg.Term > f.term {
		if err := f.adoptTerm(env, msg.Term); err != nil {
			return nil, err
		}
	}
	// Reject candidates from stale terms (Section 5.1).
	if msg.Term < f.term {
		env.Transport.Send(from, &RequestVoteResponse{Term: f.term, VoteGranted: false})
		return f, nil
	}
	// At most one vote per term (Section 5.2).
	if f.votedFor != nil && *f.votedFor != msg.CandidateID {
		env.Transport.Send(from, &RequestVoteResponse{Term: f.term, VoteGranted: false})
		return f, nil
	}
	// Only vote for candidates whose log is at least as up-to-date as
	// ours (Section 5.4).
	lastIndex, lastTerm, err := lastIndexAndTerm(env.Log)
	if err != nil {
		return nil, err
	}
	upToDate := msg.LastLogTerm > lastTerm ||
		(msg.LastLogTerm == lastTerm && msg.LastLogIndex >= lastIndex)
	if !upToDate {
		env.Transport.Send(from, &RequestVoteResponse{Term: f.term, VoteGranted: false})
		return f, nil
	}
	candidate := msg.CandidateID
	f.votedFor = &candidate
	if err := saveVotedFor(env.State, f.votedFor); err != nil {
		return nil, err
	}
	env.Timers.ResetElectionTimer()
	env.Transport.Send(from, &RequestVoteResponse{Term: f.term, VoteGranted: true})
	return f, nil
}

func (f *Follower) onAppendEntries(env Env, from uuid.UUID, msg *AppendEntries) (Role, error) {
	if msg.Term < f.term {
		// Stale leader.
		env.Transport.Send(from, &AppendEntriesResponse{Term: f.term, Success: false})
		return f, nil
	}
	if msg.Term > f.term {
		if err := f.adoptTerm(env, msg.Term); err != nil {
			return nil, err
		}
	}
	leader := msg.LeaderID
	f.leader = &leader
	env.Timers.ResetElectionTimer()

	ok, err := f.prevEntryMatches(env, msg.PrevLogIndex, msg.PrevLogTerm)
	if err != nil {
		return nil, err
	}
	if !ok {
		env.Transport.Send(from, &AppendEntriesResponse{Term: f.term, Success: false})
		return f, nil
	}
	if len(msg.Entries) > 0 {
		if err := f.reconcileEntries(env, msg.Entries); err != nil {
			return nil, err
		}
	}
	// Our log now provably matches the leader's through the batch.
	matchThrough := msg.PrevLogIndex + uint64(len(msg.Entries))
	if msg.CommitIndex > f.commitIndex {
		f.commitIndex = msg.CommitIndex
		if matchThrough < f.commitIndex {
			f.commitIndex = matchThrough
		}
	}
	env.Transport.Send(from, &AppendEntriesResponse{
		Term:      f.term,
		Success:   true,
		LastIndex: matchThrough,
	})
	return f, nil
}

// prevEntryMatches checks that our log contains the leader's probe
// entry. The zero sentinel pair matches every log.
func (f *Follower) prevEntryMatches(env Env, prevIndex, prevTerm uint64) (bool, error) {
	if prevIndex == 0 {
		return true, nil
	}
	entry, err := env.Log.EntryAt(prevIndex)
	if err != nil {
		return false, err
	}
	return entry != nil && entry.Term == prevTerm, nil
}

// reconcileEntries merges the leader's batch into the local log:
// entries already present with a matching term are skipped, the first
// conflict truncates our tail, and everything from there on is
// appended.
func (f *Follower) reconcileEntries(env Env, entries []LogEntry) error {
	for i, entry := range entries {
		existing, err := env.Log.EntryAt(entry.Index)
		if err != nil {
			return err
		}
		if existing != nil && existing.Term == entry.Term {
			continue
		}
		if existing != nil {
			if err := env.Log.TruncateFrom(entry.Index); err != nil {
				return err
			}
		}
		return env.Log.Append(entries[i:]...)
	}
	return nil
}
