package memory

import (
	"investment_manager/internal/repository"
)

var (
	_ repository.PlanRepository        = (*PlanRepository)(nil)
	_ repository.InvestmentRepository  = (*Ledger)(nil)
	_ repository.TransactionRepository = (*Ledger)(nil)
	_ repository.AccrualRunRepository  = (*AccrualRunRepository)(nil)
)
