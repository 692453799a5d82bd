package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"investment_manager/internal/domain"
	"investment_manager/internal/repository"
)

type PlanRepository struct {
	mu    sync.RWMutex
	plans map[string]domain.InvestmentPlan
	// unique index on (name, startDate, durationDays)
	uniqueIndex map[string]string
}

func NewPlanRepository() *PlanRepository {
	return &PlanRepository{
		plans:       make(map[string]domain.InvestmentPlan),
		uniqueIndex: make(map[string]string),
	}
}

func planKey(name string, startDate time.Time, durationDays int) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(name), startDate.UTC().Format("2006-01-02"), durationDays)
}

func (r *PlanRepository) Save(ctx context.Context, plan *domain.InvestmentPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plans[plan.ID]; exists {
		return fmt.Errorf("%w: plan %s", repository.ErrDuplicate, plan.ID)
	}

	key := planKey(plan.Name, plan.StartDate, plan.DurationDays)
	if _, exists := r.uniqueIndex[key]; exists {
		return fmt.Errorf("%w: plan %q", repository.ErrDuplicate, plan.Name)
	}

	r.plans[plan.ID] = *plan
	r.uniqueIndex[key] = plan.ID

	return nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id string) (*domain.InvestmentPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plan, exists := r.plans[id]
	if !exists {
		return nil, fmt.Errorf("%w: plan %s", repository.ErrNotFound, id)
	}
	return &plan, nil
}

func (r *PlanRepository) GetByName(ctx context.Context, name string) (*domain.InvestmentPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, plan := range r.plans {
		if strings.EqualFold(plan.Name, name) {
			p := plan
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: plan %q", repository.ErrNotFound, name)
}

func (r *PlanRepository) Update(ctx context.Context, plan *domain.InvestmentPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.plans[plan.ID]
	if !exists {
		return fmt.Errorf("%w: plan %s", repository.ErrNotFound, plan.ID)
	}

	oldKey := planKey(current.Name, current.StartDate, current.DurationDays)
	newKey := planKey(plan.Name, plan.StartDate, plan.DurationDays)
	if newKey != oldKey {
		if other, exists := r.uniqueIndex[newKey]; exists && other != plan.ID {
			return fmt.Errorf("%w: plan %q", repository.ErrDuplicate, plan.Name)
		}
		delete(r.uniqueIndex, oldKey)
		r.uniqueIndex[newKey] = plan.ID
	}

	plan.UpdatedAt = time.Now().UTC()
	r.plans[plan.ID] = *plan

	return nil
}

func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	plan, exists := r.plans[id]
	if !exists {
		return fmt.Errorf("%w: plan %s", repository.ErrNotFound, id)
	}

	delete(r.uniqueIndex, planKey(plan.Name, plan.StartDate, plan.DurationDays))
	delete(r.plans, id)

	return nil
}

func (r *PlanRepository) List(ctx context.Context, filter repository.PlanFilter, page repository.Page, order repository.Sort) ([]*domain.InvestmentPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.InvestmentPlan
	for _, plan := range r.plans {
		if !matchPlan(plan, filter) {
			continue
		}
		p := plan
		result = append(result, &p)
	}

	sortPlans(result, order)

	return paginate(result, page.Normalize()), nil
}

func matchPlan(plan domain.InvestmentPlan, filter repository.PlanFilter) bool {
	if filter.Name != "" && !strings.EqualFold(plan.Name, filter.Name) {
		return false
	}
	if filter.Amount != nil && !plan.Amount.Equal(*filter.Amount) {
		return false
	}
	if filter.DailyInterest != nil && !plan.DailyInterest.Equal(*filter.DailyInterest) {
		return false
	}
	if filter.Status != "" && plan.Status != filter.Status {
		return false
	}
	return true
}

func sortPlans(plans []*domain.InvestmentPlan, order repository.Sort) {
	var less func(a, b *domain.InvestmentPlan) bool

	switch order.Field {
	case "name":
		less = func(a, b *domain.InvestmentPlan) bool { return a.Name < b.Name }
	case "amount":
		less = func(a, b *domain.InvestmentPlan) bool { return a.Amount.LessThan(b.Amount) }
	case "dailyInterest":
		less = func(a, b *domain.InvestmentPlan) bool { return a.DailyInterest.LessThan(b.DailyInterest) }
	case "durationDays":
		less = func(a, b *domain.InvestmentPlan) bool { return a.DurationDays < b.DurationDays }
	case "startDate":
		less = func(a, b *domain.InvestmentPlan) bool { return a.StartDate.Before(b.StartDate) }
	case "createdAt", "":
		less = func(a, b *domain.InvestmentPlan) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		less = func(a, b *domain.InvestmentPlan) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}

	sort.Slice(plans, func(i, j int) bool {
		if order.Desc {
			return less(plans[j], plans[i])
		}
		return less(plans[i], plans[j])
	})
}

func paginate[T any](items []T, page repository.Page) []T {
	start := (page.Page - 1) * page.Limit
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
