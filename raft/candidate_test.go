package raft

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func mustCandidate(t *testing.T, env Env, term uint64) *Candidate {
	role, err := becomeCandidate(env, term)
	assert.NoError(t, err)
	candidate, ok := role.(*Candidate)
	assert.True(t, ok)
	return candidate
}

func Test_Candidate_CanvassesClusterOnElection(t *testing.T) {
	env, _, transport, timers := testEnv(t, 3, 1, 2)

	candidate := mustCandidate(t, env, 3)

	term, err := loadTerm(env.State)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), term)
	votedFor, err := loadVotedFor(env.State)
	assert.NoError(t, err)
	assert.Equal(t, env.Config.SelfID(), *votedFor)
	assert.Equal(t, 1, timers.electionResets)

	canvass := transport.sentTo(uuid.Nil)[0].(*RequestVote)
	assert.Equal(t, uint64(3), canvass.Term)
	assert.Equal(t, env.Config.SelfID(), canvass.CandidateID)
	assert.Equal(t, uint64(2), canvass.LastLogIndex)
	assert.Equal(t, uint64(2), canvass.LastLogTerm)
	assert.True(t, candidate.votes[env.Config.SelfID()])
}

func Test_Candidate_WinsElectionWithMajority(t *testing.T) {
	env, members, transport, _ := testEnv(t, 3)
	candidate := mustCandidate(t, env, 1)
	transport.reset()

	role, err := candidate.Handle(env, members[1], &RequestVoteResponse{Term: 1, VoteGranted: true})
	assert.NoError(t, err)
	leader, ok := role.(*Leader)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), leader.term)

	// Victory is announced right away.
	announce := transport.sentTo(uuid.Nil)
	assert.Len(t, announce, 1)
	assert.Equal(t, uint64(1), announce[0].(*AppendEntries).Term)
}

func Test_Candidate_IgnoresRejectionsAndStaleGrants(t *testing.T) {
	env, members, _, _ := testEnv(t, 5)
	candidate := mustCandidate(t, env, 3)

	role, err := candidate.Handle(env, members[1], &RequestVoteResponse{Term: 3, VoteGranted: false})
	assert.NoError(t, err)
	assert.Same(t, candidate, role)

	// A grant for an older candidacy does not count toward this one.
	role, err = candidate.Handle(env, members[2], &RequestVoteResponse{Term: 2, VoteGranted: true})
	assert.NoError(t, err)
	assert.Same(t, candidate, role)
	assert.Len(t, candidate.votes, 1)

	// Double-counting a single voter must not reach quorum.
	for i := 0; i < 3; i++ {
		role, err = candidate.Handle(env, members[3], &RequestVoteResponse{Term: 3, VoteGranted: true})
		assert.NoError(t, err)
	}
	assert.Same(t, candidate, role)
	assert.Len(t, candidate.votes, 2)
}

func Test_Candidate_YieldsToCurrentLeader(t *testing.T) {
	env, members, transport, _ := testEnv(t, 3)
	candidate := mustCandidate(t, env, 2)
	transport.reset()
	leader := members[1]

	role, err := candidate.Handle(env, leader, &AppendEntries{
		Term:     2,
		LeaderID: leader,
		Entries:  []LogEntry{{Index: 1, Term: 2}},
	})
	assert.NoError(t, err)
	follower, ok := role.(*Follower)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), follower.term)

	// The entries were processed by the new follower, not dropped.
	reply := transport.sentTo(leader)[0].(*AppendEntriesResponse)
	assert.True(t, reply.Success)
	assert.Equal(t, uint64(1), reply.LastIndex)
}

func Test_Candidate_RejectsStaleLeaderAndKeepsCanvassing(t *testing.T) {
	env, members, transport, _ := testEnv(t, 3)
	candidate := mustCandidate(t, env, 4)
	transport.reset()

	role, err := candidate.Handle(env, members[1], &AppendEntries{Term: 3, LeaderID: members[1]})
	assert.NoError(t, err)
	assert.Same(t, candidate, role)
	reply := transport.sentTo(members[1])[0].(*AppendEntriesResponse)
	assert.False(t, reply.Success)
	assert.Equal(t, uint64(4), reply.Term)
}

func Test_Candidate_StepsDownOnHigherTermResponse(t *testing.T) {
	env, members, _, _ := testEnv(t, 3)
	candidate := mustCandidate(t, env, 2)

	role, err := candidate.Handle(env, members[1], &RequestVoteResponse{Term: 7, VoteGranted: false})
	assert.NoError(t, err)
	follower, ok := role.(*Follower)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), follower.term)
}

func Test_Candidate_RefusesToVoteForRivals(t *testing.T) {
	env, members, transport, _ := testEnv(t, 3)
	candidate := mustCandidate(t, env, 2)
	transport.reset()

	role, err := candidate.Handle(env, members[1], &RequestVote{Term: 2, CandidateID: members[1]})
	assert.NoError(t, err)
	assert.Same(t, candidate, role)
	reply := transport.sentTo(members[1])[0].(*RequestVoteResponse)
	assert.False(t, reply.VoteGranted)
}

func Test_Candidate_RestartsElectionOnTimeout(t *testing.T) {
	env, _, _, _ := testEnv(t, 3)
	candidate := mustCandidate(t, env, 2)

	role, err := candidate.Handle(env, env.Config.SelfID(), &ElectionTimeout{})
	assert.NoError(t, err)
	next, ok := role.(*Candidate)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), next.term)
}
