// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/shelflife/internal/model"
)

// Collector はPrometheusメトリクスを収集する実装。
// ストア、日付解析、サービス層、HTTPミドルウェアがそれぞれ必要なメソッドだけをインターフェースとして宣言して利用する。
type Collector struct {
	storeOps    *prometheus.CounterVec
	storedItems prometheus.Gauge
	parseFail   prometheus.Counter
	itemsByRisk *prometheus.GaugeVec
	httpStatus  *prometheus.CounterVec
	httpLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelflife_store_operations_total",
			Help: "ストア操作の合計数（操作種別・結果別）",
		}, []string{"op", "result"}),
		storedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shelflife_stored_items",
			Help: "最後に保存されたコレクションの商品数",
		}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelflife_date_parse_failures_total",
			Help: "期限日の解析失敗の合計数",
		}),
		itemsByRisk: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shelflife_items_by_risk",
			Help: "最後に集計したリスク区分ごとの商品数",
		}, []string{"category"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelflife_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelflife_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.storeOps,
		c.storedItems,
		c.parseFail,
		c.itemsByRisk,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

// RecordStoreOperation はストア操作の結果を記録する。
func (c *Collector) RecordStoreOperation(op string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.storeOps.WithLabelValues(op, result).Inc()
}

// SetStoredItems は保存された商品数を記録する。
func (c *Collector) SetStoredItems(n int) {
	c.storedItems.Set(float64(n))
}

// RecordDateParseFailure は期限日の解析失敗を記録する。
func (c *Collector) RecordDateParseFailure() {
	c.parseFail.Inc()
}

// SetRiskCounts はリスク区分ごとの商品数を記録する。
func (c *Collector) SetRiskCounts(summary model.Summary) {
	c.itemsByRisk.WithLabelValues(string(model.RiskExpired)).Set(float64(summary.Expired))
	c.itemsByRisk.WithLabelValues(string(model.RiskAtRisk)).Set(float64(summary.AtRisk))
	c.itemsByRisk.WithLabelValues(string(model.RiskWarning)).Set(float64(summary.Warning))
	c.itemsByRisk.WithLabelValues(string(model.RiskSafe)).Set(float64(summary.Safe))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPLatency はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordHTTPLatency(duration time.Duration) {
	c.httpLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
