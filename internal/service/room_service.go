package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BatsyBS/Stream-Lightning/internal/domain"
	"github.com/BatsyBS/Stream-Lightning/internal/repository"
	"github.com/BatsyBS/Stream-Lightning/lib/logger/sl"
)

var ErrRoomEnded = errors.New("room ended")

const maxChatMessageLength = 4000
const defaultChatHistoryLimit = 200

// HostDisconnectedReason is broadcast with stream_ended when the
// broadcaster's connection drops without an explicit stop.
const HostDisconnectedReason = "Host disconnected"

// RoomService is the signaling relay core: room registry, membership,
// negotiation forwarding, broadcast control and the chat/liveness channel.
// Mutations of a room happen under that room's mutex, and every event is
// enqueued while the mutex is held, so participants observe membership and
// control events for one room in the order they were processed.
type RoomService struct {
	rooms     repository.RoomRepository
	log       *slog.Logger
	chatLimit int
}

func NewRoomService(rooms repository.RoomRepository, log *slog.Logger, chatLimit int) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	if chatLimit <= 0 {
		chatLimit = defaultChatHistoryLimit
	}
	return &RoomService{
		rooms:     rooms,
		log:       log,
		chatLimit: chatLimit,
	}
}

// CreateRoom registers a room under the caller-chosen id and makes the
// caller its broadcaster. Re-registering an existing id is a no-op that
// still acks room_created; the original broadcaster is never displaced.
func (s *RoomService) CreateRoom(ctx context.Context, roomID string, host *domain.Participant) (*domain.Room, error) {
	const op = "service.room.create"
	log := s.log.With(slog.String("op", op), slog.String("room_id", roomID))

	if roomID == "" {
		return nil, errors.New("room id is required")
	}
	if host == nil {
		return nil, errors.New("host is required")
	}

	if existing, err := s.rooms.GetByID(ctx, roomID); err == nil {
		log.Info("room already registered", slog.String("host_id", existing.Broadcaster.ID))
		host.EnqueueEvent(domain.Event{
			Type:   domain.EventRoomCreated,
			RoomID: existing.ID,
			HostID: existing.Broadcaster.ID,
		})
		return existing, nil
	} else if !errors.Is(err, repository.ErrRoomNotFound) {
		return nil, err
	}

	room := domain.NewRoom(roomID, host)

	if err := s.rooms.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrRoomExists) {
			// Lost a race against a concurrent create_room for the same id.
			existing, getErr := s.rooms.GetByID(ctx, roomID)
			if getErr != nil {
				return nil, getErr
			}
			host.EnqueueEvent(domain.Event{
				Type:   domain.EventRoomCreated,
				RoomID: existing.ID,
				HostID: existing.Broadcaster.ID,
			})
			return existing, nil
		}
		return nil, err
	}

	// Only the connection that actually registered the room becomes its
	// broadcaster; a lost create race leaves the caller a plain viewer.
	host.Role = domain.RoleBroadcaster

	host.EnqueueEvent(domain.Event{
		Type:   domain.EventRoomCreated,
		RoomID: room.ID,
		HostID: host.ID,
	})

	log.Info("room created", slog.String("host_id", host.ID))
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

func (s *RoomService) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	return s.rooms.List(ctx)
}

// JoinRoom adds the viewer to the room, acks room_joined to the viewer and
// broadcasts viewer_joined with the updated count to everyone else.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, username string, viewer *domain.Participant) (*domain.Room, error) {
	const op = "service.room.join"
	log := s.log.With(slog.String("op", op), slog.String("room_id", roomID))

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		log.Info("join rejected", sl.Err(err))
		return nil, err
	}

	if username == "" {
		username = domain.DefaultViewerName
	}
	viewer.Username = username
	viewer.Role = domain.RoleViewer

	room.Mutex.Lock()
	if room.Ended() {
		room.Mutex.Unlock()
		return nil, ErrRoomEnded
	}

	room.Viewers[viewer.ID] = viewer
	count := len(room.Viewers)

	viewer.EnqueueEvent(domain.Event{
		Type:        domain.EventRoomJoined,
		RoomID:      room.ID,
		Username:    viewer.Username,
		ViewerCount: domain.Count(count),
	})
	s.broadcastLocked(room, domain.Event{
		Type:        domain.EventViewerJoined,
		ViewerID:    viewer.ID,
		Username:    viewer.Username,
		ViewerCount: domain.Count(count),
	}, viewer.ID)
	room.Mutex.Unlock()

	log.Info("viewer joined",
		slog.String("viewer_id", viewer.ID),
		slog.String("username", viewer.Username),
		slog.Int("viewer_count", count),
	)
	return room, nil
}

// LeaveRoom removes the viewer and broadcasts viewer_left with the updated
// count. It is idempotent: a second leave (explicit leave racing a
// disconnect) is a no-op, as is a leave against a room already gone.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, viewerID string) error {
	const op = "service.room.leave"
	log := s.log.With(slog.String("op", op), slog.String("room_id", roomID))

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil
		}
		return err
	}

	room.Mutex.Lock()
	viewer, ok := room.Viewers[viewerID]
	if !ok {
		room.Mutex.Unlock()
		return nil
	}

	delete(room.Viewers, viewerID)
	count := len(room.Viewers)

	s.broadcastLocked(room, domain.Event{
		Type:        domain.EventViewerLeft,
		ViewerID:    viewerID,
		ViewerCount: domain.Count(count),
	}, viewerID)
	room.Mutex.Unlock()

	viewer.Close()

	log.Info("viewer left",
		slog.String("viewer_id", viewerID),
		slog.Int("viewer_count", count),
	)
	return nil
}

// StartStream marks the room live and broadcasts stream_started.
func (s *RoomService) StartStream(ctx context.Context, roomID string) error {
	return s.setStreaming(ctx, roomID, domain.StateStreaming, domain.EventStreamStarted)
}

// StopStream marks the stream paused and broadcasts stream_stopped.
// Membership is untouched; the broadcaster may start again.
func (s *RoomService) StopStream(ctx context.Context, roomID string) error {
	return s.setStreaming(ctx, roomID, domain.StateStopped, domain.EventStreamStopped)
}

func (s *RoomService) setStreaming(ctx context.Context, roomID string, state domain.StreamState, eventType string) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}

	room.Mutex.Lock()
	if room.Ended() {
		room.Mutex.Unlock()
		return ErrRoomEnded
	}
	room.State = state
	s.broadcastLocked(room, domain.Event{Type: eventType}, "")
	room.Mutex.Unlock()

	s.log.Info("stream state changed",
		slog.String("room_id", roomID),
		slog.String("state", string(state)),
	)
	return nil
}

// EndRoom is the terminal transition: stream_ended with a human-readable
// reason goes to every viewer, their outbound queues are closed, and the
// room is dropped from the registry. Idempotent.
func (s *RoomService) EndRoom(ctx context.Context, roomID, reason string) error {
	const op = "service.room.end"
	log := s.log.With(slog.String("op", op), slog.String("room_id", roomID))

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil
		}
		return err
	}

	room.Mutex.Lock()
	if room.Ended() {
		room.Mutex.Unlock()
		return nil
	}
	room.State = domain.StateEnded

	var hostID string
	if room.Broadcaster != nil {
		hostID = room.Broadcaster.ID
	}
	s.broadcastLocked(room, domain.Event{
		Type:    domain.EventStreamEnded,
		Message: reason,
	}, hostID)

	viewers := make([]*domain.Participant, 0, len(room.Viewers))
	for _, viewer := range room.Viewers {
		viewers = append(viewers, viewer)
	}
	room.Mutex.Unlock()

	// Closing after the broadcast: buffered events are still drained by
	// each viewer's write pump before it exits.
	for _, viewer := range viewers {
		viewer.Close()
	}

	if err := s.rooms.Delete(ctx, roomID); err != nil && !errors.Is(err, repository.ErrRoomNotFound) {
		log.Error("failed to delete room", sl.Err(err))
		return err
	}

	log.Info("room ended", slog.String("reason", reason))
	return nil
}

// RelaySignal forwards an offer, answer or ice_candidate to the target
// participant of the sender's room, stamped with the true sender id. The
// payload is passed through untouched. A vanished target or room is the
// normal disconnect race and is dropped silently.
func (s *RoomService) RelaySignal(ctx context.Context, roomID string, sender *domain.Participant, event *domain.Event) error {
	const op = "service.room.relay"

	if event == nil || !event.IsNegotiation() {
		return errors.New("unsupported signal type")
	}

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		s.log.Debug("dropping signal for unknown room",
			slog.String("op", op),
			slog.String("room_id", roomID),
			slog.String("type", event.Type),
		)
		return nil
	}

	room.Mutex.RLock()
	var target *domain.Participant
	if room.Broadcaster != nil && room.Broadcaster.ID == event.TargetID {
		target = room.Broadcaster
	} else {
		target = room.Viewers[event.TargetID]
	}
	room.Mutex.RUnlock()

	if target == nil {
		s.log.Debug("relay target not connected",
			slog.String("op", op),
			slog.String("room_id", roomID),
			slog.String("target_id", event.TargetID),
		)
		return nil
	}

	forward := domain.Event{
		Type:      event.Type,
		SenderID:  sender.ID,
		Offer:     event.Offer,
		Answer:    event.Answer,
		Candidate: event.Candidate,
	}
	if !target.EnqueueEvent(forward) {
		s.log.Debug("dropping signal for saturated target",
			slog.String("op", op),
			slog.String("target_id", event.TargetID),
		)
	}
	return nil
}

// Chat broadcasts a timestamped chat event to every participant in the
// room, the sender included, and records it in the room's bounded history.
func (s *RoomService) Chat(ctx context.Context, roomID, username, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("chat message cannot be empty")
	}
	if utf8.RuneCountInString(text) > maxChatMessageLength {
		return errors.New("chat message is too long")
	}

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}

	msg := domain.NewChatMessage(username, text)

	room.Mutex.Lock()
	if room.Ended() {
		room.Mutex.Unlock()
		return ErrRoomEnded
	}

	room.ChatHistory = append(room.ChatHistory, msg)
	if len(room.ChatHistory) > s.chatLimit {
		room.ChatHistory = room.ChatHistory[len(room.ChatHistory)-s.chatLimit:]
	}

	s.broadcastLocked(room, domain.Event{
		Type:      domain.EventChatMessage,
		Username:  msg.Username,
		Message:   msg.Content,
		Timestamp: msg.Clock(),
	}, "")
	room.Mutex.Unlock()

	return nil
}

// Ping echoes the timestamp back to the same connection only, with the
// relay's own clock in milliseconds alongside for delay estimation.
func (s *RoomService) Ping(p *domain.Participant, timestamp any) {
	p.EnqueueEvent(domain.Event{
		Type:       domain.EventLatencyPong,
		Timestamp:  timestamp,
		ServerTime: float64(time.Now().UnixMilli()),
	})
}

// Disconnect is the cleanup hook for a dropped connection: a viewer leaves
// their room, a broadcaster takes the whole room down.
func (s *RoomService) Disconnect(ctx context.Context, roomID string, p *domain.Participant) {
	if roomID == "" {
		return
	}

	var err error
	if p.Role == domain.RoleBroadcaster {
		err = s.EndRoom(ctx, roomID, HostDisconnectedReason)
	} else {
		err = s.LeaveRoom(ctx, roomID, p.ID)
	}
	if err != nil {
		s.log.Error("disconnect cleanup failed",
			slog.String("room_id", roomID),
			slog.String("participant_id", p.ID),
			sl.Err(err),
		)
	}
}

// broadcastLocked enqueues the event for every participant except the
// excluded id. Caller must hold room.Mutex; enqueueing never blocks, so
// holding the lock here is what gives the per-room ordering guarantee.
func (s *RoomService) broadcastLocked(room *domain.Room, event domain.Event, exclude string) {
	if room.Broadcaster != nil && room.Broadcaster.ID != exclude {
		if !room.Broadcaster.EnqueueEvent(event) {
			s.logDrop(room.ID, room.Broadcaster.ID, event.Type)
		}
	}
	for id, viewer := range room.Viewers {
		if id == exclude {
			continue
		}
		if !viewer.EnqueueEvent(event) {
			s.logDrop(room.ID, id, event.Type)
		}
	}
}

func (s *RoomService) logDrop(roomID, participantID, eventType string) {
	s.log.Debug("dropping broadcast event",
		slog.String("room_id", roomID),
		slog.String("participant_id", participantID),
		slog.String("type", eventType),
	)
}
