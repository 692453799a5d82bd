package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"investment_manager/internal/accrual"
	"investment_manager/internal/domain"
	"investment_manager/internal/enrollment"
	"investment_manager/internal/plan"
	"investment_manager/internal/repository"
	"investment_manager/pkg/metrics"
	"investment_manager/pkg/validator"
)

// APIHandler maps HTTP requests onto the core services. Authorization is a
// collaborator concern: the caller identity arrives in the X-User-ID header
// set by the gateway in front of this service.
type APIHandler struct {
	plans          *plan.Service
	enrollments    *enrollment.Service
	engine         *accrual.Engine
	metrics        *metrics.Collector
	validator      *validator.RequestValidator
	logger         *slog.Logger
	requestTimeout time.Duration
}

func NewAPIHandler(
	plans *plan.Service,
	enrollments *enrollment.Service,
	engine *accrual.Engine,
	collector *metrics.Collector,
	logger *slog.Logger,
) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		plans:          plans,
		enrollments:    enrollments,
		engine:         engine,
		metrics:        collector,
		validator:      validator.NewRequestValidator(),
		logger:         logger,
		requestTimeout: 30 * time.Second,
	}
}

type CreatePlanRequest struct {
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	DailyInterest    decimal.Decimal `json:"daily_interest"`
	ReturnPercentage decimal.Decimal `json:"return_percentage"`
	DurationDays     int             `json:"duration_days"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
}

type UpdatePlanRequest struct {
	Name             *string            `json:"name,omitempty"`
	Description      *string            `json:"description,omitempty"`
	DailyInterest    *decimal.Decimal   `json:"daily_interest,omitempty"`
	ReturnPercentage *decimal.Decimal   `json:"return_percentage,omitempty"`
	Status           *domain.PlanStatus `json:"status,omitempty"`
}

type EnrollRequest struct {
	PlanID string          `json:"investment_plan_id"`
	Amount decimal.Decimal `json:"amount"`
}

type RunAccrualRequest struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *APIHandler) CreatePlanHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	if err := h.validator.ValidatePlan(validator.PlanRequest{
		Name:             req.Name,
		Amount:           req.Amount,
		DailyInterest:    req.DailyInterest,
		ReturnPercentage: req.ReturnPercentage,
		DurationDays:     req.DurationDays,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
	}); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	created, err := h.plans.Create(ctx, plan.CreateParams{
		Name:             req.Name,
		Description:      req.Description,
		Amount:           req.Amount,
		DailyInterest:    req.DailyInterest,
		ReturnPercentage: req.ReturnPercentage,
		DurationDays:     req.DurationDays,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendJSON(w, created, http.StatusCreated)
}

func (h *APIHandler) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	filter, err := parsePlanFilter(r)
	if err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "INVALID_FILTER")
		return
	}

	summaries, err := h.plans.ListSummaries(ctx, filter, parsePage(r), parseSort(r))
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendJSON(w, summaries, http.StatusOK)
}

func (h *APIHandler) GetPlanHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	p, err := h.plans.Get(ctx, r.PathValue("id"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendJSON(w, p, http.StatusOK)
}

func (h *APIHandler) UpdatePlanHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if req.Name == nil && req.Description == nil && req.DailyInterest == nil &&
		req.ReturnPercentage == nil && req.Status == nil {
		h.sendError(w, "Update body must contain at least one field", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	updated, err := h.plans.Update(ctx, r.PathValue("id"), plan.UpdateParams{
		Name:             req.Name,
		Description:      req.Description,
		DailyInterest:    req.DailyInterest,
		ReturnPercentage: req.ReturnPercentage,
		Status:           req.Status,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendJSON(w, updated, http.StatusOK)
}

func (h *APIHandler) DeletePlanHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	if err := h.plans.Delete(ctx, r.PathValue("id")); err != nil {
		h.handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) EnrollHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	userID := r.Header.Get("X-User-ID")

	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	if err := h.validator.ValidateEnrollment(validator.EnrollmentRequest{
		UserID: userID,
		PlanID: req.PlanID,
		Amount: req.Amount,
	}); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	inv, err := h.enrollments.Enroll(ctx, userID, req.PlanID, req.Amount)

	if h.metrics != nil {
		h.metrics.RecordEnrollment(time.Since(startTime), err == nil)
	}

	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendJSON(w, inv, http.StatusCreated)
}

func (h *APIHandler) ListInvestmentsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	filter := repository.InvestmentFilter{
		UserID: r.URL.Query().Get("user_id"),
		PlanID: r.URL.Query().Get("plan_id"),
		Status: domain.InvestmentStatus(r.URL.Query().Get("status")),
	}

	summaries, err := h.enrollments.ListSummaries(ctx, filter, parsePage(r), parseSort(r))
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendJSON(w, summaries, http.StatusOK)
}

func (h *APIHandler) GetInvestmentHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	inv, err := h.enrollments.Get(ctx, r.PathValue("id"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendJSON(w, inv, http.StatusOK)
}

func (h *APIHandler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	transactions, err := h.enrollments.ListTransactions(ctx, r.PathValue("id"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendJSON(w, transactions, http.StatusOK)
}

// ListUserTransactionsHandler returns the caller's own transaction history.
func (h *APIHandler) ListUserTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.sendError(w, "Missing X-User-ID header", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	transactions, err := h.enrollments.ListUserTransactions(ctx, userID, parsePage(r))
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendJSON(w, transactions, http.StatusOK)
}

func (h *APIHandler) RunAccrualHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	asOf := time.Now().UTC()
	if r.Body != nil && r.ContentLength > 0 {
		var req RunAccrualRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
			return
		}
		if req.AsOf != nil {
			asOf = req.AsOf.UTC()
		}
	}

	run, err := h.engine.Run(ctx, asOf)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendJSON(w, run, http.StatusOK)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	h.sendJSON(w, response, http.StatusOK)
}

func (h *APIHandler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.sendError(w, err.Error(), http.StatusNotFound, "NOT_FOUND")
	case errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrDuplicateEnrollment),
		errors.Is(err, repository.ErrLimitExceeded),
		errors.Is(err, repository.ErrPlanInUse):
		h.sendError(w, err.Error(), http.StatusBadRequest, "BUSINESS_RULE_VIOLATION")
	case errors.Is(err, accrual.ErrRunInProgress):
		h.sendError(w, err.Error(), http.StatusConflict, "RUN_IN_PROGRESS")
	case errors.Is(err, repository.ErrStorageUnavailable):
		h.sendError(w, "Storage unavailable", http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE")
	default:
		h.logger.Error("Unhandled error", slog.String("error", err.Error()))
		h.sendError(w, "Internal server error", http.StatusInternalServerError, "SERVER_ERROR")
	}
}

func parsePage(r *http.Request) repository.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return repository.Page{Page: page, Limit: limit}
}

// parseSort reads the sortBy query parameter in "field:direction" form,
// mirroring the query API this service replaces.
func parseSort(r *http.Request) repository.Sort {
	sortBy := r.URL.Query().Get("sortBy")
	if sortBy == "" {
		return repository.Sort{}
	}
	field, direction, _ := strings.Cut(sortBy, ":")
	return repository.Sort{
		Field: field,
		Desc:  strings.EqualFold(direction, "desc"),
	}
}

func parsePlanFilter(r *http.Request) (repository.PlanFilter, error) {
	q := r.URL.Query()
	filter := repository.PlanFilter{
		Name:   q.Get("name"),
		Status: domain.PlanStatus(q.Get("status")),
	}

	if raw := q.Get("amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return repository.PlanFilter{}, errors.New("amount must be a number")
		}
		filter.Amount = &amount
	}
	if raw := q.Get("dailyInterest"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return repository.PlanFilter{}, errors.New("dailyInterest must be a number")
		}
		filter.DailyInterest = &rate
	}

	return filter, nil
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})

	h.logger.Warn("API error response",
		slog.String("message", message),
		slog.String("code", code),
		slog.Int("status", statusCode))
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/plans", h.CreatePlanHandler)
	mux.HandleFunc("GET /api/v1/plans", h.ListPlansHandler)
	mux.HandleFunc("GET /api/v1/plans/{id}", h.GetPlanHandler)
	mux.HandleFunc("PATCH /api/v1/plans/{id}", h.UpdatePlanHandler)
	mux.HandleFunc("DELETE /api/v1/plans/{id}", h.DeletePlanHandler)
	mux.HandleFunc("POST /api/v1/investments", h.EnrollHandler)
	mux.HandleFunc("GET /api/v1/investments", h.ListInvestmentsHandler)
	mux.HandleFunc("GET /api/v1/investments/{id}", h.GetInvestmentHandler)
	mux.HandleFunc("GET /api/v1/investments/{id}/transactions", h.ListTransactionsHandler)
	mux.HandleFunc("GET /api/v1/transactions", h.ListUserTransactionsHandler)
	mux.HandleFunc("POST /api/v1/accrual/runs", h.RunAccrualHandler)
	mux.HandleFunc("GET /api/health", h.HealthCheckHandler)
}
