package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"investment_manager/internal/domain"
	"investment_manager/internal/repository"
)

// Ledger holds investments and their transactions under one lock so that
// every balance change and its ledger entry commit together or not at all.
// A unique index on (userID, planID) closes the duplicate-enrollment race at
// the storage layer.
type Ledger struct {
	mu           sync.RWMutex
	investments  map[string]domain.Investment
	transactions map[string]domain.Transaction
	byInvestment map[string][]string // transaction IDs in append order
	enrollment   map[string]string   // userID|planID -> investment ID
}

func NewLedger() *Ledger {
	return &Ledger{
		investments:  make(map[string]domain.Investment),
		transactions: make(map[string]domain.Transaction),
		byInvestment: make(map[string][]string),
		enrollment:   make(map[string]string),
	}
}

func enrollmentKey(userID, planID string) string {
	return userID + "|" + planID
}

func (l *Ledger) CreateWithFunding(ctx context.Context, inv *domain.Investment, funding *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := enrollmentKey(inv.UserID, inv.PlanID)
	if _, exists := l.enrollment[key]; exists {
		return fmt.Errorf("%w: user %s, plan %s", repository.ErrDuplicateEnrollment, inv.UserID, inv.PlanID)
	}
	if _, exists := l.investments[inv.ID]; exists {
		return fmt.Errorf("%w: investment %s", repository.ErrDuplicate, inv.ID)
	}
	if funding.InvestmentID != inv.ID {
		return fmt.Errorf("%w: funding transaction references investment %s", repository.ErrQueryFailed, funding.InvestmentID)
	}

	l.investments[inv.ID] = *inv
	l.transactions[funding.ID] = *funding
	l.byInvestment[inv.ID] = append(l.byInvestment[inv.ID], funding.ID)
	l.enrollment[key] = inv.ID

	return nil
}

func (l *Ledger) ApplyDailyAccrual(ctx context.Context, investmentID string, earning decimal.Decimal, asOf time.Time) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	inv, exists := l.investments[investmentID]
	if !exists {
		return nil, fmt.Errorf("%w: investment %s", repository.ErrNotFound, investmentID)
	}

	day := domain.DayOf(asOf)
	if inv.LastAccrualDay >= day {
		return nil, fmt.Errorf("%w: investment %s, day %s", repository.ErrAlreadyAccrued, investmentID, day)
	}

	tx := domain.NewCredit(inv.UserID, inv.ID, earning, asOf)

	inv.Balance = inv.Balance.Add(earning)
	inv.LastAccrualDay = day
	inv.UpdatedAt = asOf

	l.investments[inv.ID] = inv
	l.transactions[tx.ID] = *tx
	l.byInvestment[inv.ID] = append(l.byInvestment[inv.ID], tx.ID)

	return tx, nil
}

func (l *Ledger) GetByID(ctx context.Context, id string) (*domain.Investment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inv, exists := l.investments[id]
	if !exists {
		return nil, fmt.Errorf("%w: investment %s", repository.ErrNotFound, id)
	}
	return &inv, nil
}

func (l *Ledger) SetStatus(ctx context.Context, id string, status domain.InvestmentStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	inv, exists := l.investments[id]
	if !exists {
		return fmt.Errorf("%w: investment %s", repository.ErrNotFound, id)
	}

	inv.Status = status
	inv.UpdatedAt = time.Now().UTC()
	l.investments[id] = inv

	return nil
}

func (l *Ledger) ListActive(ctx context.Context) ([]*domain.Investment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*domain.Investment
	for _, inv := range l.investments {
		if inv.Status == domain.InvestmentActive {
			i := inv
			result = append(result, &i)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (l *Ledger) List(ctx context.Context, filter repository.InvestmentFilter, page repository.Page, order repository.Sort) ([]*domain.Investment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*domain.Investment
	for _, inv := range l.investments {
		if filter.UserID != "" && inv.UserID != filter.UserID {
			continue
		}
		if filter.PlanID != "" && inv.PlanID != filter.PlanID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		i := inv
		result = append(result, &i)
	}

	sortInvestments(result, order)

	return paginate(result, page.Normalize()), nil
}

func (l *Ledger) CountByPlan(ctx context.Context, planID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, inv := range l.investments {
		if inv.PlanID == planID {
			count++
		}
	}
	return count, nil
}

func (l *Ledger) GetByInvestmentID(ctx context.Context, investmentID string) ([]*domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, exists := l.investments[investmentID]; !exists {
		return nil, fmt.Errorf("%w: investment %s", repository.ErrNotFound, investmentID)
	}

	ids := l.byInvestment[investmentID]
	result := make([]*domain.Transaction, 0, len(ids))
	for _, id := range ids {
		tx := l.transactions[id]
		result = append(result, &tx)
	}

	return result, nil
}

func (l *Ledger) GetByUserID(ctx context.Context, userID string, page repository.Page) ([]*domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range l.transactions {
		if tx.UserID == userID {
			t := tx
			result = append(result, &t)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})

	return paginate(result, page.Normalize()), nil
}

func sortInvestments(investments []*domain.Investment, order repository.Sort) {
	var less func(a, b *domain.Investment) bool

	switch order.Field {
	case "amount":
		less = func(a, b *domain.Investment) bool { return a.Amount.LessThan(b.Amount) }
	case "balance":
		less = func(a, b *domain.Investment) bool { return a.Balance.LessThan(b.Balance) }
	case "expectedReturn":
		less = func(a, b *domain.Investment) bool { return a.ExpectedReturn.LessThan(b.ExpectedReturn) }
	case "startDate":
		less = func(a, b *domain.Investment) bool { return a.StartDate.Before(b.StartDate) }
	default:
		less = func(a, b *domain.Investment) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}

	sort.Slice(investments, func(i, j int) bool {
		if order.Desc {
			return less(investments[j], investments[i])
		}
		return less(investments[i], investments[j])
	})
}
