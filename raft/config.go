package raft

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ServerAddress represents a network address of a raft server (hostname:port)
type ServerAddress string

type Server struct {
	ID         uuid.UUID
	NetAddress ServerAddress
}

// ClusterConfig is the validated membership view of a single node.
// Construction is the only place configuration errors can surface; a
// ClusterConfig in hand is guaranteed usable for quorum arithmetic.
type ClusterConfig struct {
	self    uuid.UUID
	members []uuid.UUID
}

// NewClusterConfig validates the member set (non-empty, contains self,
// no duplicates). A misconfigured cluster is rejected here, never
// during a heartbeat round.
func NewClusterConfig(self uuid.UUID, members []uuid.UUID) (*ClusterConfig, error) {
	var err error
	if len(members) == 0 {
		err = multierr.Append(err, fmt.Errorf("cluster has no members"))
	}
	seen := make(map[uuid.UUID]bool, len(members))
	for _, member := range members {
		if seen[member] {
			err = multierr.Append(err, fmt.Errorf("duplicate member %v", member))
		}
		seen[member] = true
	}
	if len(members) > 0 && !seen[self] {
		err = multierr.Append(err, fmt.Errorf("member list does not contain self (%v)", self))
	}
	if err != nil {
		return nil, err
	}
	return &ClusterConfig{
		self:    self,
		members: append([]uuid.UUID(nil), members...),
	}, nil
}

func (config *ClusterConfig) SelfID() uuid.UUID {
	return config.self
}

// Members returns every cluster member, including self.
func (config *ClusterConfig) Members() []uuid.UUID {
	return config.members
}

// QuorumSize is the majority threshold, floor(N/2)+1.
func (config *ClusterConfig) QuorumSize() int {
	return len(config.members)/2 + 1
}
