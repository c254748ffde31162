// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はポーリングとHTTP配信のメトリクスを収集する。
type Collector struct {
	fetchSuccess  prometheus.Counter
	fetchFail     prometheus.Counter
	bozoFail      prometheus.Counter
	itemsInserted prometheus.Counter
	cycleduration prometheus.Histogram
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_fetch_success_total",
			Help: "ソースフェッチ成功の合計数",
		}),
		fetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_fetch_fail_total",
			Help: "ソースフェッチ失敗（トランスポートエラー）の合計数",
		}),
		bozoFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_bozo_total",
			Help: "不正ドキュメント（デコード失敗）の合計数",
		}),
		itemsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_items_inserted_total",
			Help: "ストアに挿入されたアイテムの合計数（重複除外後）",
		}),
		cycleduration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketfeed_poll_cycle_seconds",
			Help:    "ポーリングサイクル全体の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.bozoFail,
		c.itemsInserted,
		c.cycleduration,
		c.httpStatus,
	)

	return c
}

// RecordFetchSuccess はソースフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess(source string) {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はトランスポート失敗を記録する。
func (c *Collector) RecordFetchFailure(source string) {
	c.fetchFail.Inc()
}

// RecordBozo はデコード失敗を記録する。
func (c *Collector) RecordBozo(source string) {
	c.bozoFail.Inc()
}

// RecordItemsInserted は挿入されたアイテム数を記録する。
func (c *Collector) RecordItemsInserted(count int) {
	c.itemsInserted.Add(float64(count))
}

// RecordCycleDuration はサイクル所要時間を記録する。
func (c *Collector) RecordCycleDuration(d time.Duration) {
	c.cycleduration.Observe(d.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
