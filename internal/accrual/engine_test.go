package accrual

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"investment_manager/internal/domain"
	"investment_manager/internal/repository/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	plans  *memory.PlanRepository
	ledger *memory.Ledger
	runs   *memory.AccrualRunRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		plans:  memory.NewPlanRepository(),
		ledger: memory.NewLedger(),
		runs:   memory.NewAccrualRunRepository(),
	}
}

func (f *fixture) addPlan(t *testing.T, name, dailyInterest string, durationDays int) *domain.InvestmentPlan {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := domain.NewInvestmentPlan(
		name, "",
		dec("100000"), dec(dailyInterest), dec("10"),
		durationDays, start, start.AddDate(0, 0, durationDays),
	)
	require.NoError(t, f.plans.Save(context.Background(), plan))
	return plan
}

func (f *fixture) addInvestment(t *testing.T, userID string, plan *domain.InvestmentPlan, amount string) *domain.Investment {
	t.Helper()
	now := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	inv := domain.NewInvestment(userID, plan, dec(amount), now)
	funding := domain.NewCredit(userID, inv.ID, dec(amount), now)
	require.NoError(t, f.ledger.CreateWithFunding(context.Background(), inv, funding))
	return inv
}

func (f *fixture) engine() *Engine {
	return NewEngine(f.ledger, f.plans, f.runs, 4, nil)
}

func TestRun_CreditsDailyInterest(t *testing.T) {
	f := newFixture(t)
	plan := f.addPlan(t, "Gold", "2", 30)
	inv := f.addInvestment(t, "u1", plan, "1000")

	asOf := time.Date(2026, 1, 3, 6, 0, 0, 0, time.UTC)
	run, err := f.engine().Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 0, run.Failed)
	assert.True(t, run.InterestCredited.Equal(dec("20")))

	got, err := f.ledger.GetByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("1020")),
		"1000 at 2%% daily accrues to 1020, got %s", got.Balance)

	txs, err := f.ledger.GetByInvestmentID(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, txs[1].Amount.Equal(dec("20")))
	assert.Equal(t, domain.TypeCredit, txs[1].Type)
	assert.Equal(t, domain.StatusSuccessful, txs[1].Status)
}

func TestRun_SimpleNotCompoundInterest(t *testing.T) {
	f := newFixture(t)
	plan := f.addPlan(t, "Gold", "2", 30)
	inv := f.addInvestment(t, "u1", plan, "1000")

	day := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := f.engine().Run(context.Background(), day.AddDate(0, 0, i))
		require.NoError(t, err)
	}

	got, err := f.ledger.GetByID(context.Background(), inv.ID)
	require.NoError(t, err)
	// Earning stays on the original principal: 3 x 20, never 2% of the
	// growing balance.
	assert.True(t, got.Balance.Equal(dec("1060")), "got %s", got.Balance)
}

func TestRun_RerunSameDayDoesNotDoubleCredit(t *testing.T) {
	f := newFixture(t)
	plan := f.addPlan(t, "Gold", "2", 30)
	inv := f.addInvestment(t, "u1", plan, "1000")

	asOf := time.Date(2026, 1, 3, 6, 0, 0, 0, time.UTC)
	first, err := f.engine().Run(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)

	// Re-run for the same day returns the recorded summary untouched.
	second, err := f.engine().Run(context.Background(), asOf.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.Processed, second.Processed)

	got, err := f.ledger.GetByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("1020")))
}

func TestRun_WatermarkGuardsWithoutRunRecord(t *testing.T) {
	f := newFixture(t)
	plan := f.addPlan(t, "Gold", "2", 30)
	inv := f.addInvestment(t, "u1", plan, "1000")

	asOf := time.Date(2026, 1, 3, 6, 0, 0, 0, time.UTC)
	_, err := f.engine().Run(context.Background(), asOf)
	require.NoError(t, err)

	// Even if the run record were lost, the per-investment watermark keeps
	// a retry from crediting twice.
	freshRuns := memory.NewAccrualRunRepository()
	engine := NewEngine(f.ledger, f.plans, freshRuns, 4, nil)
	run, err := engine.Run(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 0, run.Processed)
	assert.Equal(t, 1, run.Skipped)

	got, err := f.ledger.GetByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("1020")))
}

// failingLedger fails ApplyDailyAccrual for one investment to prove the run
// keeps going for the rest.
type failingLedger struct {
	*memory.Ledger
	failID string
}

func (f *failingLedger) ApplyDailyAccrual(ctx context.Context, investmentID string, earning decimal.Decimal, asOf time.Time) (*domain.Transaction, error) {
	if investmentID == f.failID {
		return nil, errors.New("disk on fire")
	}
	return f.Ledger.ApplyDailyAccrual(ctx, investmentID, earning, asOf)
}

func TestRun_FailureIsolation(t *testing.T) {
	f := newFixture(t)
	plan := f.addPlan(t, "Gold", "2", 30)
	bad := f.addInvestment(t, "u1", plan, "1000")
	good := f.addInvestment(t, "u2", plan, "500")

	engine := NewEngine(&failingLedger{Ledger: f.ledger, failID: bad.ID}, f.plans, f.runs, 4, nil)

	asOf := time.Date(2026, 1, 3, 6, 0, 0, 0, time.UTC)
	run, err := engine.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 1, run.Failed)

	gotGood, err := f.ledger.GetByID(context.Background(), good.ID)
	require.NoError(t, err)
	assert.True(t, gotGood.Balance.Equal(dec("510")), "u2 still receives its credit")

	gotBad, err := f.ledger.GetByID(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.True(t, gotBad.Balance.Equal(dec("1000")), "failed investment is untouched")
}

func TestRun_MaturesInvestmentsPastEndDate(t *testing.T) {
	f := newFixture(t)
	plan := f.addPlan(t, "Short", "2", 5)
	inv := f.addInvestment(t, "u1", plan, "1000")

	// Past the plan's end date: no credit, status flips to MATURED.
	asOf := plan.EndDate.AddDate(0, 0, 1)
	run, err := f.engine().Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 0, run.Processed)
	assert.Equal(t, 1, run.Matured)

	got, err := f.ledger.GetByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentMatured, got.Status)
	assert.True(t, got.Balance.Equal(dec("1000")), "no accrual past maturity")

	// Matured investments are not revisited on later runs.
	later, err := f.engine().Run(context.Background(), asOf.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, later.Processed)
	assert.Equal(t, 0, later.Matured)
}

func TestRun_MultiDaySequenceKeepsLedgerInvariant(t *testing.T) {
	f := newFixture(t)
	plan := f.addPlan(t, "Gold", "1.5", 30)
	inv := f.addInvestment(t, "u1", plan, "500")

	day := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_, err := f.engine().Run(context.Background(), day.AddDate(0, 0, i))
		require.NoError(t, err)
	}

	got, err := f.ledger.GetByID(context.Background(), inv.ID)
	require.NoError(t, err)
	// 500 + 10 x (500 * 0.015) = 575
	assert.True(t, got.Balance.Equal(dec("575")), "got %s", got.Balance)

	txs, err := f.ledger.GetByInvestmentID(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, txs, 11, "funding plus ten daily credits")

	sum := decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case domain.TypeCredit:
			sum = sum.Add(tx.Amount)
		case domain.TypeDebit:
			sum = sum.Sub(tx.Amount)
		}
	}
	assert.True(t, got.Balance.Equal(sum), "balance must reconcile to the transaction log")
}

func TestRun_MixedPlans(t *testing.T) {
	f := newFixture(t)
	gold := f.addPlan(t, "Gold", "2", 30)
	silver := f.addPlan(t, "Silver", "1", 30)

	a := f.addInvestment(t, "u1", gold, "1000")
	b := f.addInvestment(t, "u2", silver, "1000")

	asOf := time.Date(2026, 1, 3, 6, 0, 0, 0, time.UTC)
	run, err := f.engine().Run(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Processed)
	assert.True(t, run.InterestCredited.Equal(dec("30")))

	gotA, _ := f.ledger.GetByID(context.Background(), a.ID)
	gotB, _ := f.ledger.GetByID(context.Background(), b.ID)
	assert.True(t, gotA.Balance.Equal(dec("1020")))
	assert.True(t, gotB.Balance.Equal(dec("1010")))
}

// recordingNotifier captures events synchronously for assertions.
type recordingNotifier struct {
	runs    []*domain.AccrualRun
	matured []*domain.Investment
}

func (r *recordingNotifier) AccrualRunCompleted(ctx context.Context, run *domain.AccrualRun) {
	r.runs = append(r.runs, run)
}

func (r *recordingNotifier) InvestmentMatured(ctx context.Context, inv *domain.Investment) {
	r.matured = append(r.matured, inv)
}

func TestRun_NotifiesSummaryAndMaturity(t *testing.T) {
	f := newFixture(t)
	plan := f.addPlan(t, "Short", "2", 5)
	f.addInvestment(t, "u1", plan, "1000")

	notifier := &recordingNotifier{}
	engine := f.engine().WithNotifier(notifier)

	asOf := plan.EndDate.AddDate(0, 0, 1)
	_, err := engine.Run(context.Background(), asOf)
	require.NoError(t, err)

	require.Len(t, notifier.runs, 1)
	assert.Equal(t, 1, notifier.runs[0].Matured)
	require.Len(t, notifier.matured, 1)
	assert.Equal(t, domain.InvestmentMatured, notifier.matured[0].Status)
}

func TestRun_RecordsRunSummary(t *testing.T) {
	f := newFixture(t)
	plan := f.addPlan(t, "Gold", "2", 30)
	f.addInvestment(t, "u1", plan, "1000")

	asOf := time.Date(2026, 1, 3, 6, 0, 0, 0, time.UTC)
	_, err := f.engine().Run(context.Background(), asOf)
	require.NoError(t, err)

	recorded, err := f.runs.GetByDay(context.Background(), "2026-01-03")
	require.NoError(t, err)
	assert.Equal(t, 1, recorded.Processed)
	assert.True(t, recorded.InterestCredited.Equal(dec("20")))
	assert.False(t, recorded.FinishedAt.IsZero())
}

func TestRun_EmptyLedger(t *testing.T) {
	f := newFixture(t)

	run, err := f.engine().Run(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, run.Processed)
	assert.Equal(t, 0, run.Failed)
	assert.True(t, run.InterestCredited.IsZero())
}
