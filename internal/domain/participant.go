package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleBroadcaster Role = "broadcaster"
	RoleViewer      Role = "viewer"
)

const DefaultViewerName = "Viewer"

// Participant is a single relay connection: the broadcaster or one viewer.
// Its ID doubles as the signaling address (sid) for targeted negotiation
// messages. Outbound events go through a buffered channel drained by the
// connection's write pump; enqueueing never blocks the room lock.
type Participant struct {
	ID       string
	Username string
	Role     Role
	JoinedAt time.Time

	mu     sync.Mutex
	events chan Event
	closed bool
}

func NewParticipant(buffer int) *Participant {
	if buffer <= 0 {
		buffer = 32
	}
	return &Participant{
		ID:       uuid.New().String(),
		Username: DefaultViewerName,
		Role:     RoleViewer,
		JoinedAt: time.Now().UTC(),
		events:   make(chan Event, buffer),
	}
}

// Events exposes the outbound queue for the connection's writer.
func (p *Participant) Events() <-chan Event {
	return p.events
}

// EnqueueEvent queues an outbound event. It reports false when the queue is
// closed or full; a full queue drops the event rather than stall the room.
func (p *Participant) EnqueueEvent(event Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	select {
	case p.events <- event:
		return true
	default:
		return false
	}
}

// Close shuts the outbound queue. Safe to call more than once and
// concurrently with EnqueueEvent.
func (p *Participant) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.events)
}
