package api

import (
	"context"
	"time"

	"deepscan/internal/history"
)

// HistoryStore abstracts the history persistence used by the API.
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
	Get(ctx context.Context, id string) (history.Record, error)
	Delete(ctx context.Context, id string) error
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryService exposes history operations returning API DTOs.
type HistoryService struct {
	store HistoryStore
}

// NewHistoryService constructs a HistoryService around the provided store.
func NewHistoryService(store HistoryStore) *HistoryService {
	if store == nil {
		return nil
	}
	return &HistoryService{store: store}
}

// List returns the newest records first.
func (s *HistoryService) List(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if s == nil || s.store == nil {
		return []HistoryRecord{}, nil
	}
	records, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return FromRecords(records), nil
}

// Describe fetches a single record. Missing ids return history.ErrNotFound.
func (s *HistoryService) Describe(ctx context.Context, id string) (*HistoryRecord, error) {
	if s == nil || s.store == nil {
		return nil, history.ErrNotFound
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromRecord(rec)
	return &dto, nil
}

// Remove deletes a record.
func (s *HistoryService) Remove(ctx context.Context, id string) error {
	if s == nil || s.store == nil {
		return history.ErrNotFound
	}
	return s.store.Delete(ctx, id)
}

// PruneOlderThan removes records older than days and returns the count.
func (s *HistoryService) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	if s == nil || s.store == nil || days <= 0 {
		return 0, nil
	}
	return s.store.Prune(ctx, time.Now().Add(-time.Duration(days)*24*time.Hour))
}
