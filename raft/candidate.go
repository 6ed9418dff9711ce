package raft

import (
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Candidate canvasses the cluster for votes after an election timeout.
type Candidate struct {
	term  uint64
	votes map[uuid.UUID]bool
}

var _ Role = (*Candidate)(nil)

// becomeCandidate starts an election for the given term: vote for
// ourselves, rearm the randomized election timer and canvass every
// peer. In a single-node cluster the self-vote is already a majority
// and leadership follows immediately.
func becomeCandidate(env Env, term uint64) (Role, error) {
	self := env.Config.SelfID()
	log.Printf("%v: converting to candidate at term %d\n", self, term)
	if err := saveTerm(env.State, term); err != nil {
		return nil, err
	}
	if err := saveVotedFor(env.State, &self); err != nil {
		return nil, err
	}
	env.Timers.ResetElectionTimer()
	lastIndex, lastTerm, err := lastIndexAndTerm(env.Log)
	if err != nil {
		return nil, err
	}
	env.Transport.Broadcast(&RequestVote{
		Term:         term,
		CandidateID:  self,
		LastLogIndex: lastIndex,
		LastLogTerm:  lastTerm,
	})
	candidate := &Candidate{
		term:  term,
		votes: map[uuid.UUID]bool{self: true},
	}
	if len(candidate.votes) >= env.Config.QuorumSize() {
		return becomeLeader(env, term)
	}
	return candidate, nil
}

func (c *Candidate) Handle(env Env, from uuid.UUID, ev Event) (Role, error) {
	switch ev := ev.(type) {
	case *RequestVote:
		return c.onRequestVote(env, from, ev)
	case *RequestVoteResponse:
		return c.onRequestVoteResponse(env, from, ev)
	case *AppendEntries:
		return c.onAppendEntries(env, from, ev)
	case *AppendEntriesResponse:
		if ev.Term > c.term {
			return stepDown(env, from, ev.Term)
		}
		return c, nil
	case *ElectionTimeout:
		// The election was inconclusive; start over one term up.
		return becomeCandidate(env, c.term+1)
	case *HeartbeatTimeout:
		return c, nil
	default:
		panic(fmt.Sprintf("raft: unhandled event type %T", ev))
	}
}

func (c *Candidate) onRequestVote(env Env, from uuid.UUID, msg *RequestVote) (Role, error) {
	if msg.Term > c.term {
		follower, err := becomeFollower(env, msg.Term)
		if err != nil {
			return nil, err
		}
		// Let the fresh follower judge the vote request.
		return follower.Handle(env, from, msg)
	}
	// We already voted for ourselves this term.
	env.Transport.Send(from, &RequestVoteResponse{Term: c.term, VoteGranted: false})
	return c, nil
}

func (c *Candidate) onRequestVoteResponse(env Env, from uuid.UUID, msg *RequestVoteResponse) (Role, error) {
	if msg.Term > c.term {
		return stepDown(env, from, msg.Term)
	}
	if msg.Term < c.term || !msg.VoteGranted {
		return c, nil
	}
	c.votes[from] = true
	if len(c.votes) >= env.Config.QuorumSize() {
		log.Printf("%v: majority of %d votes received in election for term %d\n",
			env.Config.SelfID(), len(c.votes), c.term)
		return becomeLeader(env, c.term)
	}
	return c, nil
}

func (c *Candidate) onAppendEntries(env Env, from uuid.UUID, msg *AppendEntries) (Role, error) {
	if msg.Term < c.term {
		env.Transport.Send(from, &AppendEntriesResponse{Term: c.term, Success: false})
		return c, nil
	}
	// A leader for this (or a later) term exists; yield and process
	// its entries as a follower.
	if msg.Term == c.term {
		// Our self-vote for this term stands, otherwise we could
		// vote twice in it.
		self := env.Config.SelfID()
		env.Timers.ResetElectionTimer()
		follower := &Follower{term: c.term, votedFor: &self}
		return follower.Handle(env, from, msg)
	}
	follower, err := becomeFollower(env, msg.Term)
	if err != nil {
		return nil, err
	}
	return follower.Handle(env, from, msg)
}
