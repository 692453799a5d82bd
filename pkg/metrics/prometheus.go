package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"investment_manager/internal/domain"
)

type Collector struct {
	registry *prometheus.Registry

	enrollmentsTotal   prometheus.Counter
	enrollmentsFailed  prometheus.Counter
	enrollmentDuration prometheus.Histogram

	accrualRuns        prometheus.Counter
	investmentsAccrued prometheus.Counter
	investmentsSkipped prometheus.Counter
	investmentsMatured prometheus.Counter
	investmentsFailed  prometheus.Counter
	interestCredited   prometheus.Counter
	accrualRunDuration prometheus.Histogram

	logger *slog.Logger
}

func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		enrollmentsTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "enrollments_total",
			Help: "Total number of successful investment enrollments",
		}),
		enrollmentsFailed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "enrollments_failed_total",
			Help: "Total number of rejected or failed enrollments",
		}),
		enrollmentDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "enrollment_duration_seconds",
			Help:    "Time taken to process an enrollment",
			Buckets: prometheus.DefBuckets,
		}),
		accrualRuns: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "accrual_runs_total",
			Help: "Total number of completed daily accrual runs",
		}),
		investmentsAccrued: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "accrual_investments_processed_total",
			Help: "Investments credited with daily interest",
		}),
		investmentsSkipped: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "accrual_investments_skipped_total",
			Help: "Investments skipped because the day was already accrued",
		}),
		investmentsMatured: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "accrual_investments_matured_total",
			Help: "Investments transitioned to MATURED during accrual runs",
		}),
		investmentsFailed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "accrual_investments_failed_total",
			Help: "Investments whose accrual step failed",
		}),
		interestCredited: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "accrual_interest_credited_total",
			Help: "Total interest credited across all accrual runs",
		}),
		accrualRunDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "accrual_run_duration_seconds",
			Help:    "Wall time of a full accrual run",
			Buckets: prometheus.DefBuckets,
		}),
		logger: logger,
	}
}

func (c *Collector) RecordEnrollment(duration time.Duration, success bool) {
	if success {
		c.enrollmentsTotal.Inc()
	} else {
		c.enrollmentsFailed.Inc()
	}
	c.enrollmentDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordAccrualRun(run *domain.AccrualRun) {
	c.accrualRuns.Inc()
	c.investmentsAccrued.Add(float64(run.Processed))
	c.investmentsSkipped.Add(float64(run.Skipped))
	c.investmentsMatured.Add(float64(run.Matured))
	c.investmentsFailed.Add(float64(run.Failed))
	c.interestCredited.Add(run.InterestCredited.InexactFloat64())
	c.accrualRunDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
}

func (c *Collector) GetHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.GetHandler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		c.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (c *Collector) Shutdown(ctx context.Context) error {
	c.logger.Info("Metrics collector shutdown complete")
	return nil
}
