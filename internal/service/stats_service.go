package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BatsyBS/Stream-Lightning/internal/domain"
)

const defaultStatsHistoryLimit = 100

// StatsService keeps a bounded per-room history of stream-quality reports
// for the stats endpoint. Reports are advisory; an unknown room id just
// starts a new history.
type StatsService struct {
	mu      sync.RWMutex
	log     *slog.Logger
	limit   int
	samples map[string][]domain.StatsSample
}

func NewStatsService(limit int, log *slog.Logger) *StatsService {
	if log == nil {
		log = slog.Default()
	}
	if limit <= 0 {
		limit = defaultStatsHistoryLimit
	}
	return &StatsService{
		log:     log,
		limit:   limit,
		samples: make(map[string][]domain.StatsSample),
	}
}

func (s *StatsService) Record(roomID string, stats map[string]any) {
	if roomID == "" || stats == nil {
		return
	}

	sample := domain.StatsSample{
		Timestamp: time.Now().UTC(),
		Stats:     stats,
	}

	s.mu.Lock()
	history := append(s.samples[roomID], sample)
	if len(history) > s.limit {
		history = history[len(history)-s.limit:]
	}
	s.samples[roomID] = history
	s.mu.Unlock()

	s.log.Debug("stream stats recorded", slog.String("room_id", roomID))
}

func (s *StatsService) History(roomID string) []domain.StatsSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.samples[roomID]
	out := make([]domain.StatsSample, len(history))
	copy(out, history)
	return out
}
