package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is a no-op so callers
// never need to check whether metrics are enabled.
type Metrics struct {
	registry     *prometheus.Registry
	httpReqCnt   *prometheus.CounterVec
	httpDur      *prometheus.HistogramVec
	httpInfl     *prometheus.GaugeVec
	decisionCnt  *prometheus.CounterVec
	overrideCnt  *prometheus.CounterVec
	expansionCnt *prometheus.CounterVec
	rateCacheCnt *prometheus.CounterVec
	ocrDur       *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Buckets: prometheus.DefBuckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "http_requests_inflight"}, []string{"method"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	decisionCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "approval_decisions_total"}, []string{"decision", "expense_status"})
	overrideCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "approval_overrides_total"}, []string{"status"})
	expansionCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "approval_expansions_total"}, []string{"outcome"})
	r.MustRegister(decisionCnt, overrideCnt, expansionCnt)

	rateCacheCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "exchange_rate_cache_total"}, []string{"result"})
	ocrDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "ocr_scan_duration_seconds", Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60}}, []string{"outcome"})
	r.MustRegister(rateCacheCnt, ocrDur)

	return &Metrics{
		registry:     r,
		httpReqCnt:   httpReqCnt,
		httpDur:      httpDur,
		httpInfl:     httpInfl,
		decisionCnt:  decisionCnt,
		overrideCnt:  overrideCnt,
		expansionCnt: expansionCnt,
		rateCacheCnt: rateCacheCnt,
		ocrDur:       ocrDur,
	}
}

func (m *Metrics) ApprovalDecision(decision, expenseStatus string) {
	if m == nil {
		return
	}
	m.decisionCnt.WithLabelValues(decision, expenseStatus).Inc()
}

func (m *Metrics) ApprovalOverride(status string) {
	if m == nil {
		return
	}
	m.overrideCnt.WithLabelValues(status).Inc()
}

// ApprovalExpansion counts expansions by outcome: "rows" or "empty".
func (m *Metrics) ApprovalExpansion(rows int) {
	if m == nil {
		return
	}
	outcome := "rows"
	if rows == 0 {
		outcome = "empty"
	}
	m.expansionCnt.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RateCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.rateCacheCnt.WithLabelValues(result).Inc()
}

func (m *Metrics) OCRScan(outcome string, since time.Time) {
	if m == nil {
		return
	}
	m.ocrDur.WithLabelValues(outcome).Observe(time.Since(since).Seconds())
}

// Middleware records request count, latency and in-flight requests per route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInfl.WithLabelValues(r.Method).Inc()
		defer m.httpInfl.WithLabelValues(r.Method).Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := httpStatus(ww.Status())
		m.httpReqCnt.WithLabelValues(r.Method, route, status).Inc()
		m.httpDur.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func httpStatus(code int) string {
	if code == 0 {
		code = http.StatusOK
	}
	return strconv.Itoa(code)
}
