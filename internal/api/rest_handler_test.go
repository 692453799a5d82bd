package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"investment_manager/internal/accrual"
	"investment_manager/internal/domain"
	"investment_manager/internal/enrollment"
	"investment_manager/internal/plan"
	"investment_manager/internal/repository"
	"investment_manager/internal/repository/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type testEnv struct {
	mux    *http.ServeMux
	ledger *memory.Ledger
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	planRepo := memory.NewPlanRepository()
	ledger := memory.NewLedger()
	runRepo := memory.NewAccrualRunRepository()

	planService := plan.NewService(planRepo, ledger, nil)
	enrollService := enrollment.NewService(planRepo, ledger, ledger, nil)
	engine := accrual.NewEngine(ledger, planRepo, runRepo, 2, nil)

	handler := NewAPIHandler(planService, enrollService, engine, nil, nil)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	return &testEnv{mux: mux, ledger: ledger}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func planBody(name string) map[string]any {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return map[string]any{
		"name":              name,
		"amount":            1000,
		"daily_interest":    1.5,
		"return_percentage": 45,
		"duration_days":     30,
		"start_date":        start,
		"end_date":          start.AddDate(0, 0, 30),
	}
}

func (e *testEnv) createPlan(t *testing.T, name string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/plans", planBody(name), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.InvestmentPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created.ID
}

func TestCreatePlan(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/api/v1/plans", planBody("Gold"), nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate triple answers 400.
	rec = env.do(t, http.MethodPost, "/api/v1/plans", planBody("Gold"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePlan_ValidationError(t *testing.T) {
	env := setup(t)

	body := planBody("Gold")
	body["duration_days"] = 0
	rec := env.do(t, http.MethodPost, "/api/v1/plans", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestGetPlan(t *testing.T) {
	env := setup(t)
	id := env.createPlan(t, "Gold")

	rec := env.do(t, http.MethodGet, "/api/v1/plans/"+id, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/plans/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePlan(t *testing.T) {
	env := setup(t)
	id := env.createPlan(t, "Gold")

	rec := env.do(t, http.MethodPatch, "/api/v1/plans/"+id, map[string]any{"daily_interest": 2.5}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/plans/missing", map[string]any{"daily_interest": 2.5}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Empty patch answers 400.
	rec = env.do(t, http.MethodPatch, "/api/v1/plans/"+id, map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePlan(t *testing.T) {
	env := setup(t)
	id := env.createPlan(t, "Gold")

	rec := env.do(t, http.MethodDelete, "/api/v1/plans/"+id, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/plans/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletePlan_InUse(t *testing.T) {
	env := setup(t)
	id := env.createPlan(t, "Gold")

	rec := env.do(t, http.MethodPost, "/api/v1/investments",
		map[string]any{"investment_plan_id": id, "amount": 100},
		map[string]string{"X-User-ID": "u1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/api/v1/plans/"+id, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnroll(t *testing.T) {
	env := setup(t)
	id := env.createPlan(t, "Gold")
	headers := map[string]string{"X-User-ID": "u1"}

	rec := env.do(t, http.MethodPost, "/api/v1/investments",
		map[string]any{"investment_plan_id": id, "amount": 500}, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var inv domain.Investment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.True(t, inv.ExpectedReturn.Equal(dec("725")))

	// Second enrollment under the same plan answers 400.
	rec = env.do(t, http.MethodPost, "/api/v1/investments",
		map[string]any{"investment_plan_id": id, "amount": 100}, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Over the plan cap answers 400.
	rec = env.do(t, http.MethodPost, "/api/v1/investments",
		map[string]any{"investment_plan_id": id, "amount": 5000},
		map[string]string{"X-User-ID": "u2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown plan answers 404.
	rec = env.do(t, http.MethodPost, "/api/v1/investments",
		map[string]any{"investment_plan_id": "missing", "amount": 100},
		map[string]string{"X-User-ID": "u3"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Missing caller identity answers 400.
	rec = env.do(t, http.MethodPost, "/api/v1/investments",
		map[string]any{"investment_plan_id": id, "amount": 100}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListInvestments(t *testing.T) {
	env := setup(t)
	id := env.createPlan(t, "Gold")

	for i := 1; i <= 3; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/investments",
			map[string]any{"investment_plan_id": id, "amount": 100},
			map[string]string{"X-User-ID": fmt.Sprintf("u%d", i)})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/investments?user_id=u2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []domain.InvestmentSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "u2", summaries[0].UserID)
}

func TestGetInvestment(t *testing.T) {
	env := setup(t)
	id := env.createPlan(t, "Gold")

	rec := env.do(t, http.MethodPost, "/api/v1/investments",
		map[string]any{"investment_plan_id": id, "amount": 250},
		map[string]string{"X-User-ID": "u1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Investment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(t, http.MethodGet, "/api/v1/investments/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Investment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, got.Balance.Equal(dec("250")))

	rec = env.do(t, http.MethodGet, "/api/v1/investments/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransactions(t *testing.T) {
	env := setup(t)
	id := env.createPlan(t, "Gold")

	rec := env.do(t, http.MethodPost, "/api/v1/investments",
		map[string]any{"investment_plan_id": id, "amount": 500},
		map[string]string{"X-User-ID": "u1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var inv domain.Investment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))

	rec = env.do(t, http.MethodGet, "/api/v1/investments/"+inv.ID+"/transactions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var txs []domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TypeCredit, txs[0].Type)

	rec = env.do(t, http.MethodGet, "/api/v1/investments/missing/transactions", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListUserTransactions(t *testing.T) {
	env := setup(t)
	gold := env.createPlan(t, "Gold")
	silver := env.createPlan(t, "Silver")

	for _, id := range []string{gold, silver} {
		rec := env.do(t, http.MethodPost, "/api/v1/investments",
			map[string]any{"investment_plan_id": id, "amount": 100},
			map[string]string{"X-User-ID": "u1"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/transactions", nil,
		map[string]string{"X-User-ID": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var txs []domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	assert.Len(t, txs, 2, "one funding credit per investment")

	rec = env.do(t, http.MethodGet, "/api/v1/transactions", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAccrual(t *testing.T) {
	env := setup(t)
	id := env.createPlan(t, "Gold")

	rec := env.do(t, http.MethodPost, "/api/v1/investments",
		map[string]any{"investment_plan_id": id, "amount": 1000},
		map[string]string{"X-User-ID": "u1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	asOf := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)
	rec = env.do(t, http.MethodPost, "/api/v1/accrual/runs", map[string]any{"as_of": asOf}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run domain.AccrualRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, 1, run.Processed)
	assert.True(t, run.InterestCredited.Equal(dec("15")))

	// The investment's balance reflects the credit.
	invs, err := env.ledger.List(context.Background(), repository.InvestmentFilter{}, repository.Page{}, repository.Sort{})
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.True(t, invs[0].Balance.Equal(dec("1015")))
}

func TestHealthCheck(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
