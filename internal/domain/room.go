package domain

import (
	"sync"
	"time"
)

// StreamState tracks the broadcast lifecycle of a room.
//
// Registered -> Streaming <-> Stopped -> Ended. Ended is terminal and is
// reached when the broadcaster disconnects or ends the session.
type StreamState string

const (
	StateRegistered StreamState = "registered"
	StateStreaming  StreamState = "streaming"
	StateStopped    StreamState = "stopped"
	StateEnded      StreamState = "ended"
)

// Room is a named screen-sharing session: exactly one broadcaster plus any
// number of viewers. The id is chosen by the broadcaster's client.
// All fields except ID and CreatedAt are guarded by Mutex.
type Room struct {
	Mutex       sync.RWMutex
	ID          string
	Broadcaster *Participant
	Viewers     map[string]*Participant
	State       StreamState
	ChatHistory []*ChatMessage
	CreatedAt   time.Time
}

// NewRoom constructs a registered room owned by the given broadcaster.
func NewRoom(id string, broadcaster *Participant) *Room {
	return &Room{
		ID:          id,
		Broadcaster: broadcaster,
		Viewers:     make(map[string]*Participant),
		State:       StateRegistered,
		CreatedAt:   time.Now().UTC(),
	}
}

// Streaming reports whether the broadcaster has declared the stream live.
// Caller must hold Mutex.
func (r *Room) Streaming() bool {
	return r.State == StateStreaming
}

// Ended reports whether the room reached its terminal state.
// Caller must hold Mutex.
func (r *Room) Ended() bool {
	return r.State == StateEnded
}
