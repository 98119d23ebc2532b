package http

import (
	"encoding/json"
	"io"
	"log/slog"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"

	"github.com/BatsyBS/Stream-Lightning/internal/config"
	"github.com/BatsyBS/Stream-Lightning/internal/domain"
	"github.com/BatsyBS/Stream-Lightning/internal/repository"
	"github.com/BatsyBS/Stream-Lightning/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env: "local",
		HTTP: config.HTTPConfig{
			Address:        ":0",
			AllowedOrigins: []string{"http://localhost:5000"},
		},
		WebRTC: config.WebRTCConfig{
			STUNServers: []string{"stun:stun.l.google.com:19302"},
		},
		Relay: config.RelayConfig{
			EventBuffer:       32,
			ChatHistoryLimit:  50,
			StatsHistoryLimit: 10,
		},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewInMemoryRoomRepository()
	rooms := service.NewRoomService(repo, log, cfg.Relay.ChatHistoryLimit)
	stats := service.NewStatsService(cfg.Relay.StatsHistoryLimit, log)
	relay := NewRelayController(rooms, stats, cfg, log)

	srv := httptest.NewServer(SetupRouter(relay, cfg))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var event domain.Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := nethttp.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestRelayEndToEnd(t *testing.T) {
	srv := newTestServer(t)

	host := dial(t, srv)
	connected := readEvent(t, host)
	require.Equal(t, domain.EventConnected, connected.Type)
	hostSID := connected.SID
	require.NotEmpty(t, hostSID)

	require.NoError(t, host.WriteJSON(domain.Event{Type: domain.EventCreateRoom, RoomID: "live-demo"}))
	created := readEvent(t, host)
	require.Equal(t, domain.EventRoomCreated, created.Type)
	require.Equal(t, "live-demo", created.RoomID)
	require.Equal(t, hostSID, created.HostID)

	viewer := dial(t, srv)
	connected = readEvent(t, viewer)
	require.Equal(t, domain.EventConnected, connected.Type)
	viewerSID := connected.SID

	require.NoError(t, viewer.WriteJSON(domain.Event{Type: domain.EventJoinRoom, RoomID: "live-demo", Username: "Alice"}))
	joined := readEvent(t, viewer)
	require.Equal(t, domain.EventRoomJoined, joined.Type)
	require.Equal(t, 1, *joined.ViewerCount)

	viewerJoined := readEvent(t, host)
	require.Equal(t, domain.EventViewerJoined, viewerJoined.Type)
	require.Equal(t, viewerSID, viewerJoined.ViewerID)
	require.Equal(t, "Alice", viewerJoined.Username)
	require.Equal(t, 1, *viewerJoined.ViewerCount)

	// Host offers, viewer answers, viewer trickles a candidate without
	// repeating the room id.
	require.NoError(t, host.WriteJSON(domain.Event{
		Type:     domain.EventOffer,
		RoomID:   "live-demo",
		TargetID: viewerSID,
		Offer:    &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"},
	}))
	offer := readEvent(t, viewer)
	require.Equal(t, domain.EventOffer, offer.Type)
	require.Equal(t, hostSID, offer.SenderID)
	require.NotNil(t, offer.Offer)
	require.Equal(t, "v=0\r\n", offer.Offer.SDP)

	require.NoError(t, viewer.WriteJSON(domain.Event{
		Type:     domain.EventAnswer,
		RoomID:   "live-demo",
		TargetID: hostSID,
		Answer:   &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"},
	}))
	answer := readEvent(t, host)
	require.Equal(t, domain.EventAnswer, answer.Type)
	require.Equal(t, viewerSID, answer.SenderID)

	require.NoError(t, viewer.WriteJSON(domain.Event{
		Type:      domain.EventICECandidate,
		TargetID:  hostSID,
		Candidate: &webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host"},
	}))
	candidate := readEvent(t, host)
	require.Equal(t, domain.EventICECandidate, candidate.Type)
	require.Equal(t, viewerSID, candidate.SenderID)
	require.NotNil(t, candidate.Candidate)

	require.NoError(t, host.WriteJSON(domain.Event{Type: domain.EventStartStream, RoomID: "live-demo"}))
	require.Equal(t, domain.EventStreamStarted, readEvent(t, viewer).Type)
	require.Equal(t, domain.EventStreamStarted, readEvent(t, host).Type)

	require.NoError(t, viewer.WriteJSON(domain.Event{
		Type:     domain.EventChatMessage,
		RoomID:   "live-demo",
		Username: "Alice",
		Message:  "hi all",
	}))
	for _, conn := range []*websocket.Conn{host, viewer} {
		chat := readEvent(t, conn)
		require.Equal(t, domain.EventChatMessage, chat.Type)
		require.Equal(t, "Alice", chat.Username)
		require.Equal(t, "hi all", chat.Message)
		require.IsType(t, "", chat.Timestamp)
	}

	// stream_stats then latency_ping: the pong proves the stats report was
	// processed, since one connection's events are handled in order.
	require.NoError(t, viewer.WriteJSON(domain.Event{
		Type:   domain.EventStreamStats,
		RoomID: "live-demo",
		Stats:  map[string]any{"fps": 30},
	}))
	require.NoError(t, viewer.WriteJSON(domain.Event{Type: domain.EventLatencyPing, Timestamp: 42}))
	pong := readEvent(t, viewer)
	require.Equal(t, domain.EventLatencyPong, pong.Type)
	require.Equal(t, float64(42), pong.Timestamp)
	require.Greater(t, pong.ServerTime, float64(0))

	var summaries []map[string]any
	getJSON(t, srv.URL+"/api/rooms", &summaries)
	require.Len(t, summaries, 1)
	require.Equal(t, "live-demo", summaries[0]["room_id"])
	require.Equal(t, float64(1), summaries[0]["viewer_count"])
	require.Equal(t, true, summaries[0]["stream_active"])

	var samples []map[string]any
	getJSON(t, srv.URL+"/api/stats/live-demo", &samples)
	require.Len(t, samples, 1)

	var iceConfig map[string]any
	getJSON(t, srv.URL+"/api/config", &iceConfig)
	require.Contains(t, iceConfig, "iceServers")

	// Viewer disconnects: host learns about it with the updated count.
	viewer.Close()
	left := readEvent(t, host)
	require.Equal(t, domain.EventViewerLeft, left.Type)
	require.Equal(t, viewerSID, left.ViewerID)
	require.Equal(t, 0, *left.ViewerCount)
}

func TestJoinUnknownRoomOverWire(t *testing.T) {
	srv := newTestServer(t)

	conn := dial(t, srv)
	require.Equal(t, domain.EventConnected, readEvent(t, conn).Type)

	require.NoError(t, conn.WriteJSON(domain.Event{Type: domain.EventJoinRoom, RoomID: "ghost", Username: "Alice"}))

	event := readEvent(t, conn)
	require.Equal(t, domain.EventError, event.Type)
	require.Equal(t, "Room not found", event.Message)
}

func TestHostDisconnectEndsRoomOverWire(t *testing.T) {
	srv := newTestServer(t)

	host := dial(t, srv)
	require.Equal(t, domain.EventConnected, readEvent(t, host).Type)
	require.NoError(t, host.WriteJSON(domain.Event{Type: domain.EventCreateRoom, RoomID: "live-demo"}))
	require.Equal(t, domain.EventRoomCreated, readEvent(t, host).Type)

	viewer := dial(t, srv)
	require.Equal(t, domain.EventConnected, readEvent(t, viewer).Type)
	require.NoError(t, viewer.WriteJSON(domain.Event{Type: domain.EventJoinRoom, RoomID: "live-demo", Username: "Alice"}))
	require.Equal(t, domain.EventRoomJoined, readEvent(t, viewer).Type)

	host.Close()

	ended := readEvent(t, viewer)
	require.Equal(t, domain.EventStreamEnded, ended.Type)
	require.Equal(t, service.HostDisconnectedReason, ended.Message)

	require.Eventually(t, func() bool {
		resp, err := nethttp.Get(srv.URL + "/api/rooms")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var summaries []map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
			return false
		}
		return len(summaries) == 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]any
	getJSON(t, srv.URL+"/healthz", &body)
	require.Equal(t, "ok", body["status"])
}

func TestGetRoomNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := nethttp.Get(srv.URL + "/api/rooms/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
}
