package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/BatsyBS/Stream-Lightning/internal/api/http/converter"
	"github.com/BatsyBS/Stream-Lightning/internal/config"
	"github.com/BatsyBS/Stream-Lightning/internal/domain"
	"github.com/BatsyBS/Stream-Lightning/internal/repository"
	"github.com/BatsyBS/Stream-Lightning/internal/service"
	"github.com/BatsyBS/Stream-Lightning/lib/logger/sl"
)

const (
	// Time allowed to write an event to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 64 KB is enough for the largest SDP payloads.
	maxMessageSize = 64 * 1024
)

type RelayController struct {
	rooms    service.RoomInteractor
	stats    service.StatsInteractor
	cfg      *config.Config
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewRelayController(rooms service.RoomInteractor, stats service.StatsInteractor, cfg *config.Config, log *slog.Logger) *RelayController {
	if log == nil {
		log = slog.Default()
	}
	return &RelayController{
		rooms: rooms,
		stats: stats,
		cfg:   cfg,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeWS upgrades the connection, assigns the participant its sid and
// runs the read loop until the connection drops. Cleanup (leave or
// end-room) happens on the deferred path, so it also covers abrupt loss.
func (c *RelayController) ServeWS(ctx *gin.Context) {
	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Error("failed to upgrade connection", sl.Err(err))
		return
	}

	p := domain.NewParticipant(c.cfg.Relay.EventBuffer)

	log := c.log.With(slog.String("sid", p.ID))
	log.Info("client connected")

	go c.writePump(conn, p)

	p.EnqueueEvent(domain.Event{
		Type: domain.EventConnected,
		SID:  p.ID,
	})

	c.readLoop(conn, p, log)
}

func (c *RelayController) readLoop(conn *websocket.Conn, p *domain.Participant, log *slog.Logger) {
	var roomID string

	defer func() {
		c.rooms.Disconnect(context.Background(), roomID, p)
		p.Close()
		conn.Close()
		log.Info("client disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var event domain.Event
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error("unexpected close", sl.Err(err))
			}
			return
		}

		roomID = c.dispatch(p, roomID, &event, log)
	}
}

// dispatch routes one inbound event and returns the connection's current
// room association.
func (c *RelayController) dispatch(p *domain.Participant, roomID string, event *domain.Event, log *slog.Logger) string {
	ctx := context.Background()

	switch event.Type {
	case domain.EventCreateRoom:
		room, err := c.rooms.CreateRoom(ctx, event.RoomID, p)
		if err != nil {
			log.Error("failed to create room", sl.Err(err))
			c.sendError(p, "failed to create room")
			return roomID
		}
		return room.ID

	case domain.EventJoinRoom:
		room, err := c.rooms.JoinRoom(ctx, event.RoomID, event.Username, p)
		if err != nil {
			if errors.Is(err, repository.ErrRoomNotFound) || errors.Is(err, service.ErrRoomEnded) {
				c.sendError(p, "Room not found")
			} else {
				log.Error("failed to join room", sl.Err(err))
				c.sendError(p, "failed to join room")
			}
			return roomID
		}
		return room.ID

	case domain.EventLeaveRoom:
		target := event.RoomID
		if target == "" {
			target = roomID
		}
		if err := c.rooms.LeaveRoom(ctx, target, p.ID); err != nil {
			log.Error("failed to leave room", sl.Err(err))
		}
		if target == roomID {
			return ""
		}
		return roomID

	case domain.EventStartStream:
		if err := c.rooms.StartStream(ctx, event.RoomID); err != nil {
			log.Warn("start_stream ignored", slog.String("room_id", event.RoomID), sl.Err(err))
		}

	case domain.EventStopStream:
		if err := c.rooms.StopStream(ctx, event.RoomID); err != nil {
			log.Warn("stop_stream ignored", slog.String("room_id", event.RoomID), sl.Err(err))
		}

	case domain.EventOffer, domain.EventAnswer, domain.EventICECandidate:
		// ice_candidate carries no room_id; fall back to the connection's room.
		target := event.RoomID
		if target == "" {
			target = roomID
		}
		if err := c.rooms.RelaySignal(ctx, target, p, event); err != nil {
			log.Warn("signal dropped", slog.String("type", event.Type), sl.Err(err))
		}

	case domain.EventChatMessage:
		if err := c.rooms.Chat(ctx, event.RoomID, event.Username, event.Message); err != nil {
			log.Warn("chat_message ignored", slog.String("room_id", event.RoomID), sl.Err(err))
		}

	case domain.EventLatencyPing:
		c.rooms.Ping(p, event.Timestamp)

	case domain.EventStreamStats:
		c.stats.Record(event.RoomID, event.Stats)

	default:
		log.Warn("unknown event type", slog.String("type", event.Type))
	}

	return roomID
}

// writePump is the single writer for the connection. It drains the
// participant's event queue and keeps the connection alive with pings.
func (c *RelayController) writePump(conn *websocket.Conn, p *domain.Participant) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-p.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *RelayController) sendError(p *domain.Participant, message string) {
	p.EnqueueEvent(domain.Event{
		Type:    domain.EventError,
		Message: message,
	})
}

func (c *RelayController) ListRooms(ctx *gin.Context) {
	rooms, err := c.rooms.ListRooms(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summaries := make([]converter.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, converter.RoomToSummary(room))
	}

	ctx.JSON(http.StatusOK, summaries)
}

func (c *RelayController) GetRoom(ctx *gin.Context) {
	room, err := c.rooms.GetRoom(ctx.Request.Context(), ctx.Param("roomID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RelayController) GetStats(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.stats.History(ctx.Param("roomID")))
}

// GetWebRTCConfig hands the browser the ICE servers for its
// RTCPeerConnection; the relay itself never opens one.
func (c *RelayController) GetWebRTCConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"iceServers": []gin.H{
			{"urls": c.cfg.WebRTC.STUNServers},
		},
	})
}
