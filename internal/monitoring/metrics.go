package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 紧急度评估指标
	ClassificationsTotal prometheus.Counter
	UrgentHitsTotal      prometheus.Counter
	CorrectionsTotal     *prometheus.CounterVec
	ClassifyDuration     prometheus.Histogram
	ClassifyBacklog      prometheus.Gauge

	// 批量操作指标
	ProposalsTotal      *prometheus.CounterVec
	MutationsSucceeded  prometheus.Counter
	MutationsFailed     prometheus.Counter
	ProviderDivergence  prometheus.Counter
	ExpiredActionsTotal prometheus.Counter
	AmbiguousResponses  prometheus.Counter
	FallbackParsesTotal prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inboxpilot_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inboxpilot_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ClassificationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inboxpilot_classifications_total",
				Help: "Total number of urgency classifications",
			},
		),

		UrgentHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inboxpilot_urgent_hits_total",
				Help: "Total number of messages classified as urgent",
			},
		),

		CorrectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inboxpilot_corrections_total",
				Help: "Total number of user urgency corrections",
			},
			[]string{"direction"},
		),

		ClassifyDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "inboxpilot_classify_duration_seconds",
				Help:    "Urgency classification duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		ClassifyBacklog: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "inboxpilot_classify_backlog",
				Help: "Number of classification tasks waiting in queue",
			},
		),

		ProposalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inboxpilot_action_proposals_total",
				Help: "Total number of bulk action proposals",
			},
			[]string{"operation"},
		),

		MutationsSucceeded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inboxpilot_mutations_succeeded_total",
				Help: "Total number of candidate mutations applied",
			},
		),

		MutationsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inboxpilot_mutations_failed_total",
				Help: "Total number of candidate mutations that failed locally",
			},
		),

		ProviderDivergence: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inboxpilot_provider_divergence_total",
				Help: "Total number of provider-side mutation failures (local mirror updated anyway)",
			},
		),

		ExpiredActionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inboxpilot_expired_actions_total",
				Help: "Total number of pending actions discarded by TTL",
			},
		),

		AmbiguousResponses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inboxpilot_ambiguous_responses_total",
				Help: "Total number of confirmation responses that could not be classified",
			},
		),

		FallbackParsesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inboxpilot_fallback_parses_total",
				Help: "Total number of instructions parsed by the regex fallback",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inboxpilot_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inboxpilot_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordClassification 记录一次紧急度评估
func (m *Metrics) RecordClassification(isUrgent bool, duration time.Duration) {
	m.ClassificationsTotal.Inc()
	if isUrgent {
		m.UrgentHitsTotal.Inc()
	}
	m.ClassifyDuration.Observe(duration.Seconds())
}

// RecordCorrection 记录一次用户纠正
func (m *Metrics) RecordCorrection(toUrgent bool) {
	direction := "to_not_urgent"
	if toUrgent {
		direction = "to_urgent"
	}
	m.CorrectionsTotal.WithLabelValues(direction).Inc()
}

// RecordProposal 记录一次批量操作提案
func (m *Metrics) RecordProposal(operation string) {
	m.ProposalsTotal.WithLabelValues(operation).Inc()
}

// RecordMutationResult 记录一次批量操作执行结果
func (m *Metrics) RecordMutationResult(succeeded, failed int) {
	m.MutationsSucceeded.Add(float64(succeeded))
	m.MutationsFailed.Add(float64(failed))
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
