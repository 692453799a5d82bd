package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccrualRun is the persisted summary of one daily accrual batch. One run
// exists per UTC day; its presence marks the day as already credited.
type AccrualRun struct {
	Day              string          `json:"day"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	Processed        int             `json:"processed"`
	Skipped          int             `json:"skipped"`
	Matured          int             `json:"matured"`
	Failed           int             `json:"failed"`
	InterestCredited decimal.Decimal `json:"interest_credited"`
}
