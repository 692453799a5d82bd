package enrollment

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

// Service creates investments against plans. The investment row and its
// funding CREDIT transaction are committed in one atomic ledger write, and
// the ledger's unique (user, plan) index rejects a second enrollment even
// when two calls race.
type Service struct {
	plans          repository.PlanRepository
	ledger         repository.InvestmentRepository
	transactions   repository.TransactionRepository
	logger         *slog.Logger
	storageTimeout time.Duration
	now            func() time.Time
}

func NewService(plans repository.PlanRepository, ledger repository.InvestmentRepository, transactions repository.TransactionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		plans:          plans,
		ledger:         ledger,
		transactions:   transactions,
		logger:         logger,
		storageTimeout: 5 * time.Second,
		now:            time.Now,
	}
}

// WithClock overrides the enrollment timestamp source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Enroll(ctx context.Context, userID, planID string, amount decimal.Decimal) (*domain.Investment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: investment plan %s", repository.ErrNotFound, planID)
		}
		return nil, s.storageError(ctx, err, "getting plan")
	}

	if amount.GreaterThan(plan.Amount) {
		return nil, fmt.Errorf("%w: amount %s exceeds plan maximum %s",
			repository.ErrLimitExceeded, amount, plan.Amount)
	}

	now := s.now().UTC()
	inv := domain.NewInvestment(userID, plan, amount, now)
	funding := domain.NewCredit(userID, inv.ID, amount, now)

	if err := s.ledger.CreateWithFunding(ctx, inv, funding); err != nil {
		if errors.Is(err, repository.ErrDuplicateEnrollment) {
			return nil, err
		}
		return nil, s.storageError(ctx, err, "creating investment")
	}

	s.logger.InfoContext(ctx, "Investment created",
		slog.String("investment_id", inv.ID),
		slog.String("user_id", userID),
		slog.String("plan_id", planID),
		slog.String("amount", amount.String()),
		slog.String("expected_return", inv.ExpectedReturn.String()))

	return inv, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Investment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	inv, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, s.storageError(ctx, err, "getting investment")
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context, filter repository.InvestmentFilter, page repository.Page, sort repository.Sort) ([]*domain.Investment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	investments, err := s.ledger.List(ctx, filter, page, sort)
	if err != nil {
		return nil, s.storageError(ctx, err, "listing investments")
	}
	return investments, nil
}

// ListSummaries is the projection used by non-admin callers.
func (s *Service) ListSummaries(ctx context.Context, filter repository.InvestmentFilter, page repository.Page, sort repository.Sort) ([]domain.InvestmentSummary, error) {
	investments, err := s.List(ctx, filter, page, sort)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.InvestmentSummary, 0, len(investments))
	for _, inv := range investments {
		summaries = append(summaries, inv.Summary())
	}
	return summaries, nil
}

// ListTransactions returns the investment's full ledger history in append
// order, funding transaction first.
func (s *Service) ListTransactions(ctx context.Context, investmentID string) ([]*domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	transactions, err := s.transactions.GetByInvestmentID(ctx, investmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, s.storageError(ctx, err, "listing transactions")
	}
	return transactions, nil
}

// ListUserTransactions returns a user's transactions across all of their
// investments, most recent first.
func (s *Service) ListUserTransactions(ctx context.Context, userID string, page repository.Page) ([]*domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	transactions, err := s.transactions.GetByUserID(ctx, userID, page)
	if err != nil {
		return nil, s.storageError(ctx, err, "listing user transactions")
	}
	return transactions, nil
}

func (s *Service) storageError(ctx context.Context, err error, op string) error {
	s.logger.ErrorContext(ctx, "Ledger storage operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()))

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", repository.ErrStorageUnavailable, op)
	}
	return fmt.Errorf("%w: %s", repository.ErrQueryFailed, op)
}
