// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// エンジンのサービス層から利用する。
type MetricsCollector interface {
	RecordOperationSuccess(operation string, duration time.Duration)
	RecordOperationFailure(operation, code string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	opSuccess *prometheus.CounterVec
	opFailure *prometheus.CounterVec
	opLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		opSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lendman_operation_success_total",
			Help: "操作成功の合計数（操作別）",
		}, []string{"operation"}),
		opFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lendman_operation_failure_total",
			Help: "操作失敗の合計数（操作別・エラーコード別）",
		}, []string{"operation", "code"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lendman_operation_duration_seconds",
			Help:    "操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.opSuccess,
		c.opFailure,
		c.opLatency,
	)

	return c
}

// RecordOperationSuccess は操作成功を記録する。
func (c *Collector) RecordOperationSuccess(operation string, duration time.Duration) {
	c.opSuccess.WithLabelValues(operation).Inc()
	c.opLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordOperationFailure は操作失敗をエラーコード付きで記録する。
func (c *Collector) RecordOperationFailure(operation, code string, duration time.Duration) {
	c.opFailure.WithLabelValues(operation, code).Inc()
	c.opLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector実装。テスト用。
type NopCollector struct{}

// RecordOperationSuccess は何もしない。
func (NopCollector) RecordOperationSuccess(operation string, duration time.Duration) {}

// RecordOperationFailure は何もしない。
func (NopCollector) RecordOperationFailure(operation, code string, duration time.Duration) {}
