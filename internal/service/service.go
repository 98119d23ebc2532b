package service

import (
	"context"

	"github.com/BatsyBS/Stream-Lightning/internal/domain"
)

type RoomInteractor interface {
	CreateRoom(ctx context.Context, roomID string, host *domain.Participant) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]*domain.Room, error)
	JoinRoom(ctx context.Context, roomID, username string, viewer *domain.Participant) (*domain.Room, error)
	LeaveRoom(ctx context.Context, roomID, viewerID string) error
	StartStream(ctx context.Context, roomID string) error
	StopStream(ctx context.Context, roomID string) error
	EndRoom(ctx context.Context, roomID, reason string) error
	RelaySignal(ctx context.Context, roomID string, sender *domain.Participant, event *domain.Event) error
	Chat(ctx context.Context, roomID, username, text string) error
	Ping(p *domain.Participant, timestamp any)
	Disconnect(ctx context.Context, roomID string, p *domain.Participant)
}

type StatsInteractor interface {
	Record(roomID string, stats map[string]any)
	History(roomID string) []domain.StatsSample
}
