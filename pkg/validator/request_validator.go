package validator

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidDates    = errors.New("invalid date range")
)

// EnrollmentRequest is the structurally validated input for enroll calls.
type EnrollmentRequest struct {
	UserID string
	PlanID string
	Amount decimal.Decimal
}

// PlanRequest is the structurally validated input for plan creation.
type PlanRequest struct {
	Name             string
	Amount           decimal.Decimal
	DailyInterest    decimal.Decimal
	ReturnPercentage decimal.Decimal
	DurationDays     int
	StartDate        time.Time
	EndDate          time.Time
}

// RequestValidator performs structural validation only; business invariants
// (plan existence, limits, duplicates) belong to the core services.
type RequestValidator struct{}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{}
}

func (v *RequestValidator) ValidateEnrollment(req EnrollmentRequest) error {
	var errs []error

	if req.UserID == "" {
		errs = append(errs, fmt.Errorf("%w: user_id", ErrMissingField))
	}
	if req.PlanID == "" {
		errs = append(errs, fmt.Errorf("%w: plan_id", ErrMissingField))
	}
	if !req.Amount.IsPositive() {
		errs = append(errs, ErrInvalidAmount)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (v *RequestValidator) ValidatePlan(req PlanRequest) error {
	var errs []error

	if req.Name == "" {
		errs = append(errs, fmt.Errorf("%w: name", ErrMissingField))
	}
	if !req.Amount.IsPositive() {
		errs = append(errs, ErrInvalidAmount)
	}
	if !req.DailyInterest.IsPositive() {
		errs = append(errs, fmt.Errorf("%w: daily_interest must be positive", ErrInvalidAmount))
	}
	if req.ReturnPercentage.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: return_percentage must not be negative", ErrInvalidAmount))
	}
	if req.DurationDays < 1 {
		errs = append(errs, fmt.Errorf("%w: duration_days must be at least 1", ErrInvalidDuration))
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		errs = append(errs, fmt.Errorf("%w: start_date and end_date are required", ErrMissingField))
	} else if !req.EndDate.After(req.StartDate) {
		errs = append(errs, fmt.Errorf("%w: end_date must be after start_date", ErrInvalidDates))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
