package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"investment_manager/internal/domain"
	"investment_manager/internal/repository"
)

// Service owns the plan lifecycle: uniqueness on creation, partial updates
// with name-collision checks, and deletion guarded against plans that still
// have investments referencing them.
type Service struct {
	plans          repository.PlanRepository
	investments    repository.InvestmentRepository
	logger         *slog.Logger
	storageTimeout time.Duration
}

func NewService(plans repository.PlanRepository, investments repository.InvestmentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		plans:          plans,
		investments:    investments,
		logger:         logger,
		storageTimeout: 5 * time.Second,
	}
}

type CreateParams struct {
	Name             string
	Description      string
	Amount           decimal.Decimal
	DailyInterest    decimal.Decimal
	ReturnPercentage decimal.Decimal
	DurationDays     int
	StartDate        time.Time
	EndDate          time.Time
}

// UpdateParams is a partial update; nil fields are left unchanged.
type UpdateParams struct {
	Name             *string
	Description      *string
	DailyInterest    *decimal.Decimal
	ReturnPercentage *decimal.Decimal
	Status           *domain.PlanStatus
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*domain.InvestmentPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	plan := domain.NewInvestmentPlan(
		params.Name,
		params.Description,
		params.Amount,
		params.DailyInterest,
		params.ReturnPercentage,
		params.DurationDays,
		params.StartDate,
		params.EndDate,
	)

	if err := s.plans.Save(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		return nil, s.storageError(ctx, err, "creating plan")
	}

	s.logger.InfoContext(ctx, "Investment plan created",
		slog.String("plan_id", plan.ID),
		slog.String("name", plan.Name),
		slog.Int("duration_days", plan.DurationDays))

	return plan, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.InvestmentPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, s.storageError(ctx, err, "getting plan")
	}
	return plan, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*domain.InvestmentPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	plan, err := s.plans.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, s.storageError(ctx, err, "getting plan by name")
	}
	return plan, nil
}

func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (*domain.InvestmentPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, s.storageError(ctx, err, "getting plan for update")
	}

	if params.Name != nil && *params.Name != plan.Name {
		existing, err := s.plans.GetByName(ctx, *params.Name)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, s.storageError(ctx, err, "checking plan name")
		}
		if existing != nil && existing.ID != id {
			return nil, fmt.Errorf("%w: plan name %q", repository.ErrDuplicate, *params.Name)
		}
		plan.Name = *params.Name
	}
	if params.Description != nil {
		plan.Description = *params.Description
	}
	if params.DailyInterest != nil {
		plan.DailyInterest = *params.DailyInterest
	}
	if params.ReturnPercentage != nil {
		plan.ReturnPercentage = *params.ReturnPercentage
	}
	if params.Status != nil {
		plan.Status = *params.Status
	}

	if err := s.plans.Update(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		return nil, s.storageError(ctx, err, "updating plan")
	}

	s.logger.InfoContext(ctx, "Investment plan updated", slog.String("plan_id", id))

	return plan, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	if _, err := s.plans.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return s.storageError(ctx, err, "getting plan for delete")
	}

	count, err := s.investments.CountByPlan(ctx, id)
	if err != nil {
		return s.storageError(ctx, err, "counting plan investments")
	}
	if count > 0 {
		return fmt.Errorf("%w: plan %s has %d investments", repository.ErrPlanInUse, id, count)
	}

	if err := s.plans.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return s.storageError(ctx, err, "deleting plan")
	}

	s.logger.InfoContext(ctx, "Investment plan deleted", slog.String("plan_id", id))

	return nil
}

func (s *Service) List(ctx context.Context, filter repository.PlanFilter, page repository.Page, sort repository.Sort) ([]*domain.InvestmentPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	plans, err := s.plans.List(ctx, filter, page, sort)
	if err != nil {
		return nil, s.storageError(ctx, err, "listing plans")
	}
	return plans, nil
}

// ListSummaries is the projection used by non-admin callers.
func (s *Service) ListSummaries(ctx context.Context, filter repository.PlanFilter, page repository.Page, sort repository.Sort) ([]domain.PlanSummary, error) {
	plans, err := s.List(ctx, filter, page, sort)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.PlanSummary, 0, len(plans))
	for _, p := range plans {
		summaries = append(summaries, p.Summary())
	}
	return summaries, nil
}

// storageError logs the underlying storage failure and returns a generic
// error so driver details never reach the caller.
func (s *Service) storageError(ctx context.Context, err error, op string) error {
	s.logger.ErrorContext(ctx, "Plan storage operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()))

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", repository.ErrStorageUnavailable, op)
	}
	return fmt.Errorf("%w: %s", repository.ErrQueryFailed, op)
}
