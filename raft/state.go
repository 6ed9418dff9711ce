package raft

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// StateStore keys for the persisted protocol variables.
const (
	termKey     = "term"
	votedForKey = "votedFor"
)

func loadTerm(store StateStore) (uint64, error) {
	raw, err := store.GetDefault([]byte(termKey), []byte("0"))
	if err != nil {
		return 0, fmt.Errorf("loading term: %w", err)
	}
	term, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing term: %w", err)
	}
	return term, nil
}

func saveTerm(store StateStore, term uint64) error {
	return store.Set([]byte(termKey), []byte(strconv.FormatUint(term, 10)))
}

func loadVotedFor(store StateStore) (*uuid.UUID, error) {
	raw, err := store.GetDefault([]byte(votedForKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading votedFor: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	votedFor, err := uuid.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing votedFor: %w", err)
	}
	return &votedFor, nil
}

func saveVotedFor(store StateStore, votedFor *uuid.UUID) error {
	if votedFor == nil {
		return store.Set([]byte(votedForKey), nil)
	}
	return store.Set([]byte(votedForKey), []byte(votedFor.String()))
}
