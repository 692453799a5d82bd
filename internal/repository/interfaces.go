package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"investment_manager/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("duplicate entry")
	ErrDuplicateEnrollment = errors.New("user already enrolled in this plan")
	ErrLimitExceeded       = errors.New("amount exceeds plan limit")
	ErrPlanInUse           = errors.New("plan has active investments")
	ErrAlreadyAccrued      = errors.New("investment already accrued for this day")
	ErrQueryFailed         = errors.New("query failed")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)

// Page holds pagination options. Zero values fall back to page 1 / limit 10.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	return p
}

// Sort is a single field:direction ordering. An empty Field means no sort.
type Sort struct {
	Field string
	Desc  bool
}

// PlanFilter is the allow-listed, equality-only filter for plan queries.
type PlanFilter struct {
	Name          string
	Amount        *decimal.Decimal
	DailyInterest *decimal.Decimal
	Status        domain.PlanStatus
}

// InvestmentFilter is the allow-listed, equality-only filter for investment
// queries.
type InvestmentFilter struct {
	UserID string
	PlanID string
	Status domain.InvestmentStatus
}

type PlanRepository interface {
	// Save persists a new plan. Returns ErrDuplicate if a plan with the same
	// (name, startDate, durationDays) already exists.
	Save(ctx context.Context, plan *domain.InvestmentPlan) error
	GetByID(ctx context.Context, id string) (*domain.InvestmentPlan, error)
	GetByName(ctx context.Context, name string) (*domain.InvestmentPlan, error)
	Update(ctx context.Context, plan *domain.InvestmentPlan) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter PlanFilter, page Page, sort Sort) ([]*domain.InvestmentPlan, error)
}

// InvestmentRepository is the write side of the ledger. Every mutation that
// touches a balance also appends its transaction in the same atomic step.
type InvestmentRepository interface {
	// CreateWithFunding atomically persists a new investment together with
	// its funding CREDIT transaction. The store enforces a unique index on
	// (userID, planID) and returns ErrDuplicateEnrollment on collision, so
	// concurrent enrollments for the same pair cannot both succeed.
	CreateWithFunding(ctx context.Context, inv *domain.Investment, funding *domain.Transaction) error

	// ApplyDailyAccrual atomically credits earning to the investment balance,
	// advances the accrual watermark to asOf's UTC day, and appends the
	// matching CREDIT transaction. Returns ErrAlreadyAccrued when the
	// watermark already covers that day, making re-runs safe.
	ApplyDailyAccrual(ctx context.Context, investmentID string, earning decimal.Decimal, asOf time.Time) (*domain.Transaction, error)

	GetByID(ctx context.Context, id string) (*domain.Investment, error)
	SetStatus(ctx context.Context, id string, status domain.InvestmentStatus) error
	ListActive(ctx context.Context) ([]*domain.Investment, error)
	List(ctx context.Context, filter InvestmentFilter, page Page, sort Sort) ([]*domain.Investment, error)
	CountByPlan(ctx context.Context, planID string) (int, error)
}

type TransactionRepository interface {
	GetByInvestmentID(ctx context.Context, investmentID string) ([]*domain.Transaction, error)
	GetByUserID(ctx context.Context, userID string, page Page) ([]*domain.Transaction, error)
}

type AccrualRunRepository interface {
	// Save persists a completed run summary. Returns ErrDuplicate if a run
	// for the same day was already recorded.
	Save(ctx context.Context, run *domain.AccrualRun) error
	GetByDay(ctx context.Context, day string) (*domain.AccrualRun, error)
}
