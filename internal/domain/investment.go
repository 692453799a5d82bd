package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "ACTIVE"
	InvestmentMatured   InvestmentStatus = "MATURED"
	InvestmentSuspended InvestmentStatus = "SUSPENDED"
)

// Investment is one user's funded enrollment in a plan. Balance starts at the
// principal and only grows through accrual credits; the transaction log for
// the investment must reconcile to it at all times.
type Investment struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	PlanID         string           `json:"plan_id"`
	Amount         decimal.Decimal  `json:"amount"`  // principal, fixed at enrollment
	Balance        decimal.Decimal  `json:"balance"` // principal + accrued interest
	ExpectedReturn decimal.Decimal  `json:"expected_return"`
	StartDate      time.Time        `json:"start_date"`
	EndDate        time.Time        `json:"end_date"` // copied from plan at enrollment
	Status         InvestmentStatus `json:"status"`
	LastAccrualDay string           `json:"last_accrual_day,omitempty"` // UTC day of the latest interest credit
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// InvestmentSummary is the fixed projection returned by list endpoints.
type InvestmentSummary struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Balance        decimal.Decimal  `json:"balance"`
	ExpectedReturn decimal.Decimal  `json:"expected_return"`
	StartDate      time.Time        `json:"start_date"`
	Status         InvestmentStatus `json:"status"`
}

func (i *Investment) Summary() InvestmentSummary {
	return InvestmentSummary{
		ID:             i.ID,
		UserID:         i.UserID,
		Amount:         i.Amount,
		Balance:        i.Balance,
		ExpectedReturn: i.ExpectedReturn,
		StartDate:      i.StartDate,
		Status:         i.Status,
	}
}

// NewInvestment builds an ACTIVE investment against a plan. The balance is
// initialized to the principal and the maturity date is copied from the plan
// so that later plan edits never move an existing investment's maturity.
func NewInvestment(userID string, plan *InvestmentPlan, amount decimal.Decimal, now time.Time) *Investment {
	return &Investment{
		ID:             uuid.NewString(),
		UserID:         userID,
		PlanID:         plan.ID,
		Amount:         amount,
		Balance:        amount,
		ExpectedReturn: ExpectedReturn(amount, plan.DailyInterest, plan.DurationDays),
		StartDate:      now,
		EndDate:        plan.EndDate,
		Status:         InvestmentActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

var hundred = decimal.NewFromInt(100)

// ExpectedReturn computes amount + amount * (dailyInterest/100) * durationDays
// (simple daily interest over the full term).
func ExpectedReturn(amount, dailyInterest decimal.Decimal, durationDays int) decimal.Decimal {
	interest := amount.Mul(dailyInterest).Div(hundred).Mul(decimal.NewFromInt(int64(durationDays)))
	return amount.Add(interest)
}

// DailyEarning is the interest credited per accrual day. It is computed on
// the original principal, not the running balance: simple, not compound.
func (i *Investment) DailyEarning(dailyInterest decimal.Decimal) decimal.Decimal {
	return i.Amount.Mul(dailyInterest).Div(hundred)
}

// DayOf normalizes a timestamp to its UTC calendar day. Accrual idempotency
// keys off this value.
func DayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
