package memory

import (
	"context"
	"fmt"
	"sync"

	"investment_manager/internal/domain"
	"investment_manager/internal/repository"
)

type AccrualRunRepository struct {
	mu   sync.RWMutex
	runs map[string]domain.AccrualRun
}

func NewAccrualRunRepository() *AccrualRunRepository {
	return &AccrualRunRepository{
		runs: make(map[string]domain.AccrualRun),
	}
}

func (r *AccrualRunRepository) Save(ctx context.Context, run *domain.AccrualRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.Day]; exists {
		return fmt.Errorf("%w: accrual run %s", repository.ErrDuplicate, run.Day)
	}

	r.runs[run.Day] = *run
	return nil
}

func (r *AccrualRunRepository) GetByDay(ctx context.Context, day string) (*domain.AccrualRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, exists := r.runs[day]
	if !exists {
		return nil, fmt.Errorf("%w: accrual run %s", repository.ErrNotFound, day)
	}
	return &run, nil
}
