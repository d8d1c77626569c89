// Package metrics 推薦流程的 Prometheus 指標
//
// 所有方法對 nil 接收者安全，元件在沒有指標時照常運作。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dish_recommender"

// 營養查詢來源
const (
	SourceCache   = "cache"
	SourceNetwork = "network"
	SourceShared  = "shared"
)

// Metrics 流程指標
type Metrics struct {
	registry *prometheus.Registry

	submissions        *prometheus.CounterVec
	extractionAttempts *prometheus.CounterVec
	nutritionLookups   *prometheus.CounterVec
	nutritionFailures  *prometheus.CounterVec
	imageLookups       *prometheus.CounterVec
	enrichmentDuration *prometheus.HistogramVec
	inProgress         prometheus.Gauge
}

// New 在獨立的 registry 上註冊指標
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Submissions by outcome",
			},
			[]string{"outcome"},
		),

		extractionAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_attempts_total",
				Help:      "Completion and extraction attempts by result",
			},
			[]string{"result"},
		),

		nutritionLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nutrition_lookups_total",
				Help:      "Nutrition lookups by source",
			},
			[]string{"source"},
		),

		nutritionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nutrition_failures_total",
				Help:      "Nutrition enrichment failures by reason",
			},
			[]string{"reason"},
		),

		imageLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_lookups_total",
				Help:      "Image lookups by result",
			},
			[]string{"result"},
		),

		enrichmentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "enrichment_duration_seconds",
				Help:      "Duration of per-dish enrichment tasks",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"task"},
		),

		inProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "submission_in_progress",
				Help:      "1 while a submission is running",
			},
		),
	}
}

// Registry 供 /metrics 使用
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Submission 記錄一次提交結果
func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// ExtractionAttempt 記錄一次補全與擷取
func (m *Metrics) ExtractionAttempt(result string) {
	if m == nil {
		return
	}
	m.extractionAttempts.WithLabelValues(result).Inc()
}

// NutritionLookup 記錄營養查詢來源
func (m *Metrics) NutritionLookup(source string) {
	if m == nil {
		return
	}
	m.nutritionLookups.WithLabelValues(source).Inc()
}

// NutritionFailure 記錄營養補充失敗
func (m *Metrics) NutritionFailure(reason string) {
	if m == nil {
		return
	}
	m.nutritionFailures.WithLabelValues(reason).Inc()
}

// ImageLookup 記錄圖片查詢結果
func (m *Metrics) ImageLookup(result string) {
	if m == nil {
		return
	}
	m.imageLookups.WithLabelValues(result).Inc()
}

// ObserveEnrichment 記錄補充任務耗時
func (m *Metrics) ObserveEnrichment(task string, d time.Duration) {
	if m == nil {
		return
	}
	m.enrichmentDuration.WithLabelValues(task).Observe(d.Seconds())
}

// SetInProgress 更新進行中旗標
func (m *Metrics) SetInProgress(running bool) {
	if m == nil {
		return
	}
	if running {
		m.inProgress.Set(1)
		return
	}
	m.inProgress.Set(0)
}
