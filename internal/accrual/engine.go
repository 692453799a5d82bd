package accrual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"investment_manager/internal/domain"
	"investment_manager/internal/repository"
)

// ErrRunInProgress is returned when a second accrual run is started while
// one is still executing.
var ErrRunInProgress = errors.New("accrual run already in progress")

// Notifier receives accrual lifecycle events. Implementations must not
// block the run.
type Notifier interface {
	AccrualRunCompleted(ctx context.Context, run *domain.AccrualRun)
	InvestmentMatured(ctx context.Context, inv *domain.Investment)
}

// MetricsRecorder records run-level counters.
type MetricsRecorder interface {
	RecordAccrualRun(run *domain.AccrualRun)
}

// Engine credits daily interest to every eligible investment. Each
// investment's balance update and CREDIT transaction commit atomically, so a
// failure or interruption never leaves a half-updated investment; the
// per-investment day watermark makes re-runs for the same day no-ops.
type Engine struct {
	investments repository.InvestmentRepository
	plans       repository.PlanRepository
	runs        repository.AccrualRunRepository
	notifier    Notifier
	metrics     MetricsRecorder
	logger      *slog.Logger
	workers     int

	runMu sync.Mutex // guards against overlapping runs in this process
}

func NewEngine(
	investments repository.InvestmentRepository,
	plans repository.PlanRepository,
	runs repository.AccrualRunRepository,
	workers int,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		investments: investments,
		plans:       plans,
		runs:        runs,
		logger:      logger,
		workers:     workers,
	}
}

func (e *Engine) WithNotifier(n Notifier) *Engine {
	e.notifier = n
	return e
}

func (e *Engine) WithMetrics(m MetricsRecorder) *Engine {
	e.metrics = m
	return e
}

// Run executes the accrual batch for asOf's UTC day. The caller supplies the
// time; the engine never reads the wall clock for interest math, which keeps
// multi-day sequences deterministic under test.
//
// If a run for the day already completed, its recorded summary is returned
// unchanged and no investment is touched.
func (e *Engine) Run(ctx context.Context, asOf time.Time) (*domain.AccrualRun, error) {
	if !e.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer e.runMu.Unlock()

	day := domain.DayOf(asOf)

	if prev, err := e.runs.GetByDay(ctx, day); err == nil {
		e.logger.InfoContext(ctx, "Accrual already ran for day, returning recorded summary",
			slog.String("day", day))
		return prev, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: reading accrual run record", repository.ErrQueryFailed)
	}

	investments, err := e.investments.ListActive(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to load active investments",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: loading active investments", repository.ErrQueryFailed)
	}

	plans, err := e.loadPlans(ctx, investments)
	if err != nil {
		return nil, err
	}

	run := &domain.AccrualRun{
		Day:              day,
		StartedAt:        time.Now().UTC(),
		InterestCredited: decimal.Zero,
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, e.workers)
		matured []*domain.Investment
	)

	for _, inv := range investments {
		select {
		case <-ctx.Done():
			e.logger.WarnContext(ctx, "Accrual run interrupted",
				slog.String("day", day),
				slog.String("error", ctx.Err().Error()))
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(inv *domain.Investment) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, credited, maturedInv := e.accrueOne(ctx, inv, plans[inv.PlanID], asOf, day)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeProcessed:
				run.Processed++
				run.InterestCredited = run.InterestCredited.Add(credited)
			case outcomeSkipped:
				run.Skipped++
			case outcomeMatured:
				run.Matured++
				if maturedInv != nil {
					matured = append(matured, maturedInv)
				}
			case outcomeFailed:
				run.Failed++
			}
		}(inv)
	}

	wg.Wait()
	run.FinishedAt = time.Now().UTC()

	if err := e.runs.Save(ctx, run); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		e.logger.ErrorContext(ctx, "Failed to record accrual run",
			slog.String("day", day),
			slog.String("error", err.Error()))
	}

	if e.metrics != nil {
		e.metrics.RecordAccrualRun(run)
	}
	if e.notifier != nil {
		e.notifier.AccrualRunCompleted(ctx, run)
		for _, inv := range matured {
			e.notifier.InvestmentMatured(ctx, inv)
		}
	}

	e.logger.InfoContext(ctx, "Daily accrual run completed",
		slog.String("day", day),
		slog.Int("processed", run.Processed),
		slog.Int("skipped", run.Skipped),
		slog.Int("matured", run.Matured),
		slog.Int("failed", run.Failed),
		slog.String("interest_credited", run.InterestCredited.String()))

	return run, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeMatured
	outcomeFailed
)

// accrueOne handles a single investment. Failures are reported through the
// returned outcome only: one investment's failure must never abort the run
// for the others.
func (e *Engine) accrueOne(ctx context.Context, inv *domain.Investment, plan *domain.InvestmentPlan, asOf time.Time, day string) (outcome, decimal.Decimal, *domain.Investment) {
	if inv.EndDate.Before(asOf) {
		if err := e.investments.SetStatus(ctx, inv.ID, domain.InvestmentMatured); err != nil {
			e.logger.ErrorContext(ctx, "Failed to mature investment",
				slog.String("investment_id", inv.ID),
				slog.String("error", err.Error()))
			return outcomeFailed, decimal.Zero, nil
		}
		e.logger.InfoContext(ctx, "Investment matured",
			slog.String("investment_id", inv.ID),
			slog.String("end_date", inv.EndDate.Format(time.RFC3339)))
		inv.Status = domain.InvestmentMatured
		return outcomeMatured, decimal.Zero, inv
	}

	if inv.LastAccrualDay >= day {
		return outcomeSkipped, decimal.Zero, nil
	}

	if plan == nil {
		e.logger.ErrorContext(ctx, "Investment references unknown plan",
			slog.String("investment_id", inv.ID),
			slog.String("plan_id", inv.PlanID))
		return outcomeFailed, decimal.Zero, nil
	}

	earning := inv.DailyEarning(plan.DailyInterest)

	if _, err := e.investments.ApplyDailyAccrual(ctx, inv.ID, earning, asOf); err != nil {
		if errors.Is(err, repository.ErrAlreadyAccrued) {
			return outcomeSkipped, decimal.Zero, nil
		}
		e.logger.ErrorContext(ctx, "Failed to apply daily accrual",
			slog.String("investment_id", inv.ID),
			slog.String("error", err.Error()))
		return outcomeFailed, decimal.Zero, nil
	}

	return outcomeProcessed, earning, nil
}

func (e *Engine) loadPlans(ctx context.Context, investments []*domain.Investment) (map[string]*domain.InvestmentPlan, error) {
	plans := make(map[string]*domain.InvestmentPlan)
	for _, inv := range investments {
		if _, ok := plans[inv.PlanID]; ok {
			continue
		}
		plan, err := e.plans.GetByID(ctx, inv.PlanID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Left nil so the per-investment step records the failure
				// without stopping the run.
				plans[inv.PlanID] = nil
				continue
			}
			return nil, fmt.Errorf("%w: loading plans", repository.ErrQueryFailed)
		}
		plans[inv.PlanID] = plan
	}
	return plans, nil
}
