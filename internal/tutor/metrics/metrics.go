// Package metrics 提供 tutor 服务的 Prometheus 业务指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tutor"

// Metrics tutor 服务业务指标。所有方法对 nil 接收者安全。
type Metrics struct {
	// 摄取指标
	StepDuration   *prometheus.HistogramVec
	StepFailures   *prometheus.CounterVec
	ChunksIngested prometheus.Counter
	DocumentStatus *prometheus.CounterVec
	IngestInFlight prometheus.Gauge

	// 查询指标
	RetrievalDuration prometheus.Histogram
	RetrievalResults  prometheus.Histogram
	RetrievalErrors   prometheus.Counter
	ChatRequests      *prometheus.CounterVec
	QuestionRequests  *prometheus.CounterVec
}

// New registers the tutor metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StepDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_step_duration_seconds",
				Help:      "Ingestion pipeline step duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"step"},
		),
		StepFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_step_failures_total",
				Help:      "Total number of failed ingestion step attempts",
			},
			[]string{"step"},
		),
		ChunksIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_ingested_total",
			Help:      "Total number of chunks written",
		}),
		DocumentStatus: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_status_total",
				Help:      "Documents reaching a terminal status",
			},
			[]string{"status"},
		),
		IngestInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_in_flight",
			Help:      "Documents currently being ingested",
		}),
		RetrievalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Hybrid retrieval duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		RetrievalResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_results",
			Help:      "Chunks returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 10, 20},
		}),
		RetrievalErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_errors_total",
			Help:      "Total number of failed retrievals",
		}),
		ChatRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_requests_total",
				Help:      "Total number of chat requests",
			},
			[]string{"status"},
		),
		QuestionRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "question_requests_total",
				Help:      "Total number of practice question requests",
			},
			[]string{"status"},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordStep 记录一次步骤执行。
func (m *Metrics) RecordStep(step string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
	if err != nil {
		m.StepFailures.WithLabelValues(step).Inc()
	}
}

// RecordChunks 记录写入的分块数。
func (m *Metrics) RecordChunks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ChunksIngested.Add(float64(n))
}

// RecordDocumentStatus 记录文档进入终态。
func (m *Metrics) RecordDocumentStatus(s string) {
	if m == nil {
		return
	}
	m.DocumentStatus.WithLabelValues(s).Inc()
}

// IngestStarted 标记一次摄取开始，返回结束回调。
func (m *Metrics) IngestStarted() func() {
	if m == nil {
		return func() {}
	}
	m.IngestInFlight.Inc()
	return m.IngestInFlight.Dec
}

// RecordRetrieval 记录检索操作。
func (m *Metrics) RecordRetrieval(d time.Duration, results int, err error) {
	if m == nil {
		return
	}
	m.RetrievalDuration.Observe(d.Seconds())
	if err != nil {
		m.RetrievalErrors.Inc()
		return
	}
	m.RetrievalResults.Observe(float64(results))
}

// RecordChat 记录对话请求。
func (m *Metrics) RecordChat(err error) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(status(err)).Inc()
}

// RecordQuestions 记录练习题生成请求。
func (m *Metrics) RecordQuestions(err error) {
	if m == nil {
		return
	}
	m.QuestionRequests.WithLabelValues(status(err)).Inc()
}
