package repository

import (
	"context"

	"github.com/BatsyBS/Stream-Lightning/internal/domain"
)

// RoomRepository is the room registry. Rooms are keyed by the
// caller-chosen room id; nothing survives a restart.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Room, error)
}
