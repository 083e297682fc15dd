package service

import (
	"context"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/repository"

	"github.com/google/uuid"
)

// RecordService exposes the history of committed records
type RecordService interface {
	// List returns records newest first. An empty kind lists both kinds.
	List(ctx context.Context, kind domain.Kind, limit int) ([]*domain.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Record, error)
}

type recordService struct {
	records repository.RecordRepository
}

// NewRecordService creates a new instance of RecordService
func NewRecordService(records repository.RecordRepository) RecordService {
	return &recordService{records: records}
}

func (s *recordService) List(ctx context.Context, kind domain.Kind, limit int) ([]*domain.Record, error) {
	if kind != "" && !kind.Valid() {
		return nil, domain.ErrInvalidKind
	}
	return s.records.List(ctx, kind, limit)
}

func (s *recordService) Get(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	return s.records.FindByID(ctx, id)
}
