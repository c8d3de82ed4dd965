// Package metrics содержит метрики Prometheus сервиса аукциона.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Исходы операций арбитра.
const (
	OutcomeAccepted          = "accepted"
	OutcomeSold              = "sold"
	OutcomeEnded             = "ended"
	OutcomeAuctionClosed     = "auction_closed"
	OutcomeBidTooLow         = "bid_too_low"
	OutcomeNoBuyNow          = "no_buy_now"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeContention        = "contention"
	OutcomeError             = "error"
)

var (
	registerOnce sync.Once

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	arbiterOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_arbiter_outcomes_total",
			Help: "Outcomes of bid, buy-now and close operations.",
		},
		[]string{"operation", "outcome"},
	)

	arbiterConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_arbiter_conflicts_total",
			Help: "Compare-and-swap conflicts observed by the arbiter.",
		},
		[]string{"operation"},
	)

	sweptListings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_sweep_listings_total",
			Help: "Expired listings reconciled by the sweeper.",
		},
		[]string{"outcome"},
	)
)

// Init регистрирует метрики в реестре по умолчанию. Повторные вызовы безопасны.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			arbiterOutcomes, arbiterConflicts, sweptListings,
		)
	})
}

// Handler возвращает обработчик /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveOutcome учитывает исход операции арбитра.
func ObserveOutcome(operation, outcome string) {
	arbiterOutcomes.WithLabelValues(operation, outcome).Inc()
}

// ObserveConflict учитывает конфликт сравнения-и-замены.
func ObserveConflict(operation string) {
	arbiterConflicts.WithLabelValues(operation).Inc()
}

// ObserveSweep учитывает лот, обработанный фоновым закрытием.
func ObserveSweep(outcome string) {
	sweptListings.WithLabelValues(outcome).Inc()
}

// Instrument измеряет число запросов, задержку и запросы в обработке.
// Метка route берётся из шаблона маршрута chi, чтобы не плодить серии по идентификаторам.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
