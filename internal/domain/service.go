package domain

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidLimit is returned when a history listing limit is out of range.
var ErrInvalidLimit = errors.New("invalid limit")

// MaxListLimit bounds how many runs a single listing returns.
const MaxListLimit = 500

// HistoryService records and queries finished batch runs.
type HistoryService struct {
	repo RunRepository
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(repo RunRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// Record stores a finished run.
func (s *HistoryService) Record(ctx context.Context, run RunSummary) error {
	return s.repo.Save(ctx, run)
}

// Get retrieves a run by ID, including its failures.
func (s *HistoryService) Get(ctx context.Context, id string) (*RunSummary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrRunNotFound
	}
	return s.repo.Get(ctx, id)
}

// Recent lists up to limit runs, newest first.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 || limit > MaxListLimit {
		return nil, ErrInvalidLimit
	}
	return s.repo.List(ctx, limit)
}
