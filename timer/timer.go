package timer

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/qrilka/kontiki/raft"
)

// Sink receives timeout events. *raft.Node implements it.
type Sink interface {
	Submit(from uuid.UUID, ev raft.Event)
}

// Service runs the election and heartbeat timers as ticker goroutines
// controlled by reset channels and satisfies raft.TimerService. Resets
// requested before Start are buffered and applied once the controllers
// run.
type Service struct {
	self             uuid.UUID
	electionTimeout  time.Duration
	heartbeatTimeout time.Duration
	electionReset    chan struct{}
	heartbeatReset   chan struct{}
	stop             chan struct{}
	sink             Sink
}

var _ raft.TimerService = (*Service)(nil)

func NewService(self uuid.UUID, electionTimeout, heartbeatTimeout time.Duration) *Service {
	return &Service{
		self:             self,
		electionTimeout:  electionTimeout,
		heartbeatTimeout: heartbeatTimeout,
		electionReset:    make(chan struct{}, 10),
		heartbeatReset:   make(chan struct{}, 10),
		stop:             make(chan struct{}),
	}
}

// Start launches the controller goroutines, firing timeout events into
// sink from now on.
func (service *Service) Start(sink Sink) {
	service.sink = sink
	go service.electionController()
	go service.heartbeatController()
}

// ResetElectionTimer rearms the election timer with a fresh randomized
// timeout.
func (service *Service) ResetElectionTimer() {
	select {
	case service.electionReset <- struct{}{}:
	case <-service.stop:
	}
}

func (service *Service) ResetHeartbeatTimer() {
	select {
	case service.heartbeatReset <- struct{}{}:
	case <-service.stop:
	}
}

func (service *Service) Stop() {
	close(service.stop)
}

// Randomized per rearm so that candidates don't keep colliding.
func (service *Service) randomizedElectionTimeout() time.Duration {
	return service.electionTimeout + time.Duration(rand.Float64()*float64(service.electionTimeout))
}

// electionController owns the election ticker. Ticks that race with a
// role change are harmless: the active role simply ignores timeouts it
// has no use for.
func (service *Service) electionController() {
	ticker := time.NewTicker(service.randomizedElectionTimeout())
	defer ticker.Stop()
	for {
		select {
		case <-service.stop:
			return
		case <-ticker.C:
			service.sink.Submit(service.self, &raft.ElectionTimeout{})
			ticker.Reset(service.randomizedElectionTimeout())
		case <-service.electionReset:
			ticker.Reset(service.randomizedElectionTimeout())
		}
	}
}

func (service *Service) heartbeatController() {
	ticker := time.NewTicker(service.heartbeatTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-service.stop:
			return
		case <-ticker.C:
			service.sink.Submit(service.self, &raft.HeartbeatTimeout{})
		case <-service.heartbeatReset:
			ticker.Reset(service.heartbeatTimeout)
		}
	}
}
