package raft

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
)

// ErrCorruptLog reports a log entry missing below the known last
// index. The log can no longer be trusted at that point, so the node
// must stop rather than risk an incorrect commit decision.
var ErrCorruptLog = errors.New("raft: log entry missing below last index")

// Leader holds the volatile replication state for a single term of
// leadership. It is created only by becomeLeader and discarded
// wholesale on step-down; a term change never mutates it in place.
type Leader struct {
	term       uint64
	nextIndex  map[uuid.UUID]uint64
	matchIndex map[uuid.UUID]uint64
}

var _ Role = (*Leader)(nil)

// becomeLeader constructs the leader state for a freshly won term and
// announces leadership with an immediate empty AppendEntries, so
// followers do not have to wait out a full heartbeat interval.
func becomeLeader(env Env, term uint64) (*Leader, error) {
	lastIndex, lastTerm, err := lastIndexAndTerm(env.Log)
	if err != nil {
		return nil, err
	}
	log.Printf("%v: converting to leader of term %d\n", env.Config.SelfID(), term)
	env.Timers.ResetHeartbeatTimer()
	env.Transport.Broadcast(&AppendEntries{
		Term:         term,
		LeaderID:     env.Config.SelfID(),
		PrevLogIndex: lastIndex,
		PrevLogTerm:  lastTerm,
	})
	leader := &Leader{
		term:       term,
		nextIndex:  make(map[uuid.UUID]uint64),
		matchIndex: make(map[uuid.UUID]uint64),
	}
	for _, member := range env.Config.Members() {
		// Optimistic next pointer, pessimistic acknowledgement.
		leader.nextIndex[member] = lastIndex + 1
		leader.matchIndex[member] = 0
	}
	return leader, nil
}

// stepDown yields to a peer with more authority. The leader state is
// simply dropped; the follower role is seeded with the higher term.
func stepDown(env Env, from uuid.UUID, term uint64) (Role, error) {
	log.Printf("%v: observed higher term %d from %v, stepping down\n", env.Config.SelfID(), term, from)
	return becomeFollower(env, term)
}

func (l *Leader) Handle(env Env, from uuid.UUID, ev Event) (Role, error) {
	switch ev := ev.(type) {
	case *RequestVote:
		return l.onRequestVote(env, from, ev)
	case *RequestVoteResponse:
		return l.onRequestVoteResponse(env, from, ev)
	case *AppendEntries:
		return l.onAppendEntries(env, from, ev)
	case *AppendEntriesResponse:
		return l.onAppendEntriesResponse(env, from, ev)
	case *ElectionTimeout:
		// A leader is not a candidate; spurious ticks are ignored.
		return l, nil
	case *HeartbeatTimeout:
		return l.onHeartbeatTimeout(env)
	default:
		panic(fmt.Sprintf("raft: unhandled event type %T", ev))
	}
}

func (l *Leader) onRequestVote(env Env, from uuid.UUID, msg *RequestVote) (Role, error) {
	if msg.Term > l.term {
		// The candidate has more authority. The vote itself is
		// re-evaluated in follower role when it is retransmitted.
		return stepDown(env, from, msg.Term)
	}
	// A sitting leader never grants a vote for a term it already
	// leads, nor for a stale one.
	env.Transport.Send(from, &RequestVoteResponse{Term: l.term, VoteGranted: false})
	return l, nil
}

func (l *Leader) onRequestVoteResponse(env Env, from uuid.UUID, msg *RequestVoteResponse) (Role, error) {
	if msg.Term > l.term {
		return stepDown(env, from, msg.Term)
	}
	// A leader has no outstanding vote request.
	return l, nil
}

func (l *Leader) onAppendEntries(env Env, from uuid.UUID, msg *AppendEntries) (Role, error) {
	if msg.Term > l.term {
		// Another node is the more current leader.
		return stepDown(env, from, msg.Term)
	}
	// Equal or stale term: at most one leader exists per term, so this
	// can only be a delayed duplicate. No log content is accepted and
	// no reply is sent.
	return l, nil
}

func (l *Leader) onAppendEntriesResponse(env Env, from uuid.UUID, msg *AppendEntriesResponse) (Role, error) {
	switch {
	case msg.Term < l.term:
		// Stale response from a previous term.
		return l, nil
	case msg.Term > l.term:
		return stepDown(env, from, msg.Term)
	case !msg.Success:
		// The follower rejected the probe at the attempted
		// prevLogIndex; back off one step to find the common prefix.
		if l.nextIndex[from] > 1 {
			l.nextIndex[from]--
		}
		return l, nil
	default:
		// Successes may arrive out of order; never let an older one
		// regress the match point.
		if msg.LastIndex >= l.matchIndex[from] {
			l.matchIndex[from] = msg.LastIndex
			l.nextIndex[from] = msg.LastIndex + 1
		}
		return l, nil
	}
}

// onHeartbeatTimeout runs one full replication round: refresh our own
// match index, advance the commit index if a quorum allows it, and
// send every follower its tailored AppendEntries.
func (l *Leader) onHeartbeatTimeout(env Env) (Role, error) {
	// Rearm first so a slow round can never starve future heartbeats.
	env.Timers.ResetHeartbeatTimer()
	lastIndex, _, err := lastIndexAndTerm(env.Log)
	if err != nil {
		return nil, err
	}
	l.matchIndex[env.Config.SelfID()] = lastIndex
	commitIndex, err := l.resolveCommitIndex(env)
	if err != nil {
		return nil, err
	}
	for _, member := range env.Config.Members() {
		if member == env.Config.SelfID() {
			continue
		}
		msg, err := l.appendEntriesFor(env, member, lastIndex, commitIndex)
		if err != nil {
			return nil, err
		}
		env.Transport.Send(member, msg)
	}
	return l, nil
}

// resolveCommitIndex computes the highest index replicated on a
// quorum, counting the leader itself. A leader only commits entries of
// its own term by direct count (Section 5.4.2); prior-term entries
// commit as a side effect once a current-term entry on top of them
// does.
func (l *Leader) resolveCommitIndex(env Env) (uint64, error) {
	indexes := make([]uint64, 0, len(l.matchIndex))
	for _, index := range l.matchIndex {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool {
		return indexes[i] > indexes[j]
	})
	quorumIndex := indexes[env.Config.QuorumSize()-1]
	if quorumIndex == 0 {
		return 0, nil
	}
	entry, err := env.Log.EntryAt(quorumIndex)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, fmt.Errorf("quorum index %d: %w", quorumIndex, ErrCorruptLog)
	}
	if entry.Term != l.term {
		return 0, nil
	}
	return quorumIndex, nil
}
