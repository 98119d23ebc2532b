package domain

import "github.com/pion/webrtc/v3"

// Client -> relay event types.
const (
	EventCreateRoom  = "create_room"
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventStartStream = "start_stream"
	EventStopStream  = "stop_stream"
	EventChatMessage = "chat_message"
	EventLatencyPing = "latency_ping"
	EventStreamStats = "stream_stats"
)

// Negotiation event types, used in both directions. The relay forwards
// these without reading the payloads.
const (
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice_candidate"
)

// Relay -> client event types.
const (
	EventConnected     = "connected"
	EventRoomCreated   = "room_created"
	EventRoomJoined    = "room_joined"
	EventViewerJoined  = "viewer_joined"
	EventViewerLeft    = "viewer_left"
	EventStreamStarted = "stream_started"
	EventStreamStopped = "stream_stopped"
	EventStreamEnded   = "stream_ended"
	EventLatencyPong   = "latency_pong"
	EventError         = "error"
)

// Event is the single wire record for every signaling message, in both
// directions. Type selects which of the optional fields are meaningful.
// Offer, Answer and Candidate are opaque to the relay: they are carried
// for the peers' RTCPeerConnections and never inspected here.
type Event struct {
	Type        string                     `json:"type"`
	SID         string                     `json:"sid,omitempty"`
	RoomID      string                     `json:"room_id,omitempty"`
	HostID      string                     `json:"host_id,omitempty"`
	Username    string                     `json:"username,omitempty"`
	ViewerID    string                     `json:"viewer_id,omitempty"`
	ViewerCount *int                       `json:"viewer_count,omitempty"`
	SenderID    string                     `json:"sender_id,omitempty"`
	TargetID    string                     `json:"target_id,omitempty"`
	Offer       *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer      *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate   *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Message     string                     `json:"message,omitempty"`
	Timestamp   any                        `json:"timestamp,omitempty"`
	ServerTime  float64                    `json:"server_time,omitempty"`
	Stats       map[string]any             `json:"stats,omitempty"`
}

// IsNegotiation reports whether the event is one of the three payload
// kinds the negotiation relay forwards.
func (e *Event) IsNegotiation() bool {
	switch e.Type {
	case EventOffer, EventAnswer, EventICECandidate:
		return true
	}
	return false
}

// Count boxes a viewer count for the optional viewer_count field.
func Count(n int) *int {
	return &n
}
