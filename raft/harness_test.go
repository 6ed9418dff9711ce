package raft

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// memLog is an in-memory LogStore for driving the role handlers in
// tests. entries[i] holds the entry with index i+1.
type memLog struct {
	entries []LogEntry
}

var _ LogStore = (*memLog)(nil)

func newMemLog(terms ...uint64) *memLog {
	store := &memLog{}
	for i, term := range terms {
		store.entries = append(store.entries, LogEntry{Index: uint64(i + 1), Term: term})
	}
	return store
}

func (m *memLog) LastEntry() (*LogEntry, error) {
	if len(m.entries) == 0 {
		return nil, nil
	}
	entry := m.entries[len(m.entries)-1]
	return &entry, nil
}

func (m *memLog) EntryAt(index uint64) (*LogEntry, error) {
	if index == 0 || index > uint64(len(m.entries)) {
		return nil, nil
	}
	entry := m.entries[index-1]
	return &entry, nil
}

func (m *memLog) Append(entries ...LogEntry) error {
	for _, entry := range entries {
		if entry.Index == 0 || entry.Index > uint64(len(m.entries))+1 {
			return fmt.Errorf("append: discontinuous index %d", entry.Index)
		}
		if entry.Index <= uint64(len(m.entries)) {
			m.entries[entry.Index-1] = entry
		} else {
			m.entries = append(m.entries, entry)
		}
	}
	return nil
}

func (m *memLog) TruncateFrom(index uint64) error {
	if index == 0 {
		index = 1
	}
	if index <= uint64(len(m.entries)) {
		m.entries = m.entries[:index-1]
	}
	return nil
}

func (m *memLog) Close() error { return nil }

// holeyLog wraps a memLog but reports one index as missing, simulating
// a corrupted log store.
type holeyLog struct {
	*memLog
	hole uint64
}

func (h *holeyLog) EntryAt(index uint64) (*LogEntry, error) {
	if index == h.hole {
		return nil, nil
	}
	return h.memLog.EntryAt(index)
}

// memState is an in-memory StateStore.
type memState struct {
	values map[string][]byte
}

var _ StateStore = (*memState)(nil)

func newMemState() *memState {
	return &memState{values: make(map[string][]byte)}
}

func (m *memState) Set(key, value []byte) error {
	m.values[string(key)] = value
	return nil
}

func (m *memState) Get(key []byte) ([]byte, error) {
	val, ok := m.values[string(key)]
	if !ok {
		return nil, fmt.Errorf("no value for key %q", key)
	}
	return val, nil
}

func (m *memState) GetDefault(key []byte, defaultVal []byte) ([]byte, error) {
	if val, ok := m.values[string(key)]; ok {
		return val, nil
	}
	if defaultVal != nil {
		m.values[string(key)] = defaultVal
	}
	return defaultVal, nil
}

func (m *memState) Close() error { return nil }

// sent records one outbound message; broadcasts use uuid.Nil as the
// destination.
type sent struct {
	to  uuid.UUID
	msg Message
}

type recordingTransport struct {
	sends []sent
}

var _ Transport = (*recordingTransport)(nil)

func (t *recordingTransport) Send(to uuid.UUID, msg Message) {
	t.sends = append(t.sends, sent{to: to, msg: msg})
}

func (t *recordingTransport) Broadcast(msg Message) {
	t.sends = append(t.sends, sent{to: uuid.Nil, msg: msg})
}

func (t *recordingTransport) sentTo(to uuid.UUID) (msgs []Message) {
	for _, s := range t.sends {
		if s.to == to {
			msgs = append(msgs, s.msg)
		}
	}
	return
}

func (t *recordingTransport) reset() {
	t.sends = nil
}

type recordingTimers struct {
	electionResets  int
	heartbeatResets int
}

var _ TimerService = (*recordingTimers)(nil)

func (t *recordingTimers) ResetElectionTimer()  { t.electionResets++ }
func (t *recordingTimers) ResetHeartbeatTimer() { t.heartbeatResets++ }

// testEnv builds an Env over fakes for an n-member cluster (self is
// members[0]) with the given log terms pre-appended.
func testEnv(t *testing.T, n int, logTerms ...uint64) (Env, []uuid.UUID, *recordingTransport, *recordingTimers) {
	members := make([]uuid.UUID, n)
	for i := range members {
		members[i] = uuid.New()
	}
	config, err := NewClusterConfig(members[0], members)
	assert.NoError(t, err)
	transport := &recordingTransport{}
	timers := &recordingTimers{}
	env := Env{
		Config:    config,
		Log:       newMemLog(logTerms...),
		State:     newMemState(),
		Transport: transport,
		Timers:    timers,
	}
	return env, members, transport, timers
}
