package converter

import (
	"time"

	"github.com/BatsyBS/Stream-Lightning/internal/domain"
)

type RoomSummary struct {
	RoomID       string    `json:"room_id"`
	ViewerCount  int       `json:"viewer_count"`
	StreamActive bool      `json:"stream_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type RoomResponse struct {
	RoomID       string           `json:"room_id"`
	HostID       string           `json:"host_id"`
	State        string           `json:"state"`
	ViewerCount  int              `json:"viewer_count"`
	StreamActive bool             `json:"stream_active"`
	CreatedAt    time.Time        `json:"created_at"`
	Viewers      []ViewerResponse `json:"viewers"`
}

type ViewerResponse struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

func RoomToSummary(r *domain.Room) RoomSummary {
	r.Mutex.RLock()
	defer r.Mutex.RUnlock()

	return RoomSummary{
		RoomID:       r.ID,
		ViewerCount:  len(r.Viewers),
		StreamActive: r.Streaming(),
		CreatedAt:    r.CreatedAt,
	}
}

func RoomToApi(r *domain.Room) *RoomResponse {
	r.Mutex.RLock()
	defer r.Mutex.RUnlock()

	viewers := make([]ViewerResponse, 0, len(r.Viewers))
	for _, viewer := range r.Viewers {
		viewers = append(viewers, ViewerResponse{
			ID:       viewer.ID,
			Username: viewer.Username,
			JoinedAt: viewer.JoinedAt,
		})
	}

	var hostID string
	if r.Broadcaster != nil {
		hostID = r.Broadcaster.ID
	}

	return &RoomResponse{
		RoomID:       r.ID,
		HostID:       hostID,
		State:        string(r.State),
		ViewerCount:  len(r.Viewers),
		StreamActive: r.Streaming(),
		CreatedAt:    r.CreatedAt,
		Viewers:      viewers,
	}
}
