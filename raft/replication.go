package raft

import (
	"fmt"

	"github.com/google/uuid"
)

// lastIndexAndTerm reads the log's last entry, mapping an empty log to
// the zero sentinels.
func lastIndexAndTerm(store LogStore) (lastIndex, lastTerm uint64, err error) {
	last, err := store.LastEntry()
	if err != nil || last == nil {
		return 0, 0, err
	}
	return last.Index, last.Term, nil
}

// appendEntriesFor builds the replication message for one follower:
// every entry at or after its nextIndex in ascending order, with
// prevLogIndex/prevLogTerm taken from the entry just before the batch.
// A caught-up follower gets a pure heartbeat anchored at the leader's
// own last entry. A lookup miss at or below lastIndex means the log
// store lost an entry; that is never papered over with a fabricated
// entry.
func (l *Leader) appendEntriesFor(env Env, peer uuid.UUID, lastIndex, commitIndex uint64) (*AppendEntries, error) {
	msg := &AppendEntries{
		Term:        l.term,
		LeaderID:    env.Config.SelfID(),
		CommitIndex: commitIndex,
	}
	next := l.nextIndex[peer]
	for index := next; index <= lastIndex; index++ {
		entry, err := env.Log.EntryAt(index)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, fmt.Errorf("entry %d of %d: %w", index, lastIndex, ErrCorruptLog)
		}
		msg.Entries = append(msg.Entries, *entry)
	}
	prevIndex := next - 1
	if len(msg.Entries) == 0 {
		prevIndex = lastIndex
	}
	if prevIndex > 0 {
		prev, err := env.Log.EntryAt(prevIndex)
		if err != nil {
			return nil, err
		}
		if prev == nil {
			return nil, fmt.Errorf("entry %d of %d: %w", prevIndex, lastIndex, ErrCorruptLog)
		}
		msg.PrevLogIndex = prev.Index
		msg.PrevLogTerm = prev.Term
	}
	return msg, nil
}
