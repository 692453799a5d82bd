package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlanStatus string

const (
	PlanActive   PlanStatus = "ACTIVE"
	PlanInactive PlanStatus = "INACTIVE"
)

// InvestmentPlan is a template: it defines the interest rate, principal cap
// and duration that investments enrolled under it inherit.
type InvestmentPlan struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Amount           decimal.Decimal `json:"amount"`         // maximum allowed principal
	DailyInterest    decimal.Decimal `json:"daily_interest"` // percent per day, e.g. 1.5
	ReturnPercentage decimal.Decimal `json:"return_percentage"`
	DurationDays     int             `json:"duration_days"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	Status           PlanStatus      `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PlanSummary is the fixed projection returned by list endpoints.
type PlanSummary struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Amount           decimal.Decimal `json:"amount"`
	DailyInterest    decimal.Decimal `json:"daily_interest"`
	ReturnPercentage decimal.Decimal `json:"return_percentage"`
	DurationDays     int             `json:"duration_days"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	Status           PlanStatus      `json:"status"`
}

func (p *InvestmentPlan) Summary() PlanSummary {
	return PlanSummary{
		ID:               p.ID,
		Name:             p.Name,
		Amount:           p.Amount,
		DailyInterest:    p.DailyInterest,
		ReturnPercentage: p.ReturnPercentage,
		DurationDays:     p.DurationDays,
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		Status:           p.Status,
	}
}

func NewInvestmentPlan(name, description string, amount, dailyInterest, returnPercentage decimal.Decimal, durationDays int, startDate, endDate time.Time) *InvestmentPlan {
	now := time.Now().UTC()
	return &InvestmentPlan{
		ID:               uuid.NewString(),
		Name:             name,
		Description:      description,
		Amount:           amount,
		DailyInterest:    dailyInterest,
		ReturnPercentage: returnPercentage,
		DurationDays:     durationDays,
		StartDate:        startDate,
		EndDate:          endDate,
		Status:           PlanActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
