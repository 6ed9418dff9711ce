package raft

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// envelope pairs an inbound event with its sender. Timeout events use
// the node's own ID as sender.
type envelope struct {
	from  uuid.UUID
	event Event
}

// Node owns the single serialized event stream that drives the role
// state machine. Collaborator goroutines (transport, timers) feed
// events in through Submit; only the Run loop ever touches the active
// role, so the roles themselves need no locking.
type Node struct {
	env    Env
	role   Role
	events chan envelope
	stop   chan struct{}
}

// NewNode restores the node from its persisted state. Every node boots
// as a follower; elections promote it from there.
func NewNode(env Env) (*Node, error) {
	follower, err := restoreFollower(env)
	if err != nil {
		return nil, fmt.Errorf("restoring persisted state: %w", err)
	}
	return &Node{
		env:    env,
		role:   follower,
		events: make(chan envelope, 64),
		stop:   make(chan struct{}),
	}, nil
}

// Submit queues an event for processing. Safe to call from any
// goroutine; events submitted after Stop are dropped.
func (node *Node) Submit(from uuid.UUID, ev Event) {
	select {
	case node.events <- envelope{from: from, event: ev}:
	case <-node.stop:
	}
}

// Run processes events one at a time until Stop is called or the state
// machine hits an unrecoverable error (such as ErrCorruptLog). In the
// latter case the error is returned and the consensus subsystem must
// not be restarted on the same stores without inspection.
func (node *Node) Run() error {
	for {
		select {
		case <-node.stop:
			return nil
		case e := <-node.events:
			role, err := node.role.Handle(node.env, e.from, e.event)
			if err != nil {
				return fmt.Errorf("handling %T from %v: %w", e.event, e.from, err)
			}
			node.role = role
		}
	}
}

// Stop shuts the run loop down and closes the stores. No method should
// be called on a stopped node.
func (node *Node) Stop() error {
	close(node.stop)
	log.Printf("%v: shutdown\n", node.env.Config.SelfID())
	return multierr.Combine(node.env.Log.Close(), node.env.State.Close())
}
