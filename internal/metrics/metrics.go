package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "babycare_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

var (
	registerOnce sync.Once

	eventsIngested    *prometheus.CounterVec
	ingestErrors      *prometheus.CounterVec
	pushNotifications *prometheus.CounterVec
	statisticsTotal   *prometheus.CounterVec
	statisticsLatency *prometheus.HistogramVec
	activeSubscribers prometheus.Gauge
	memoCacheEntries  prometheus.Gauge
	cachedSnapshots   prometheus.Gauge
)

// Init 注册指标，重复调用无副作用
func Init() {
	registerOnce.Do(func() {
		eventsIngested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_ingested_total",
				Help: "Total device events persisted by type",
			},
			[]string{"type"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by stage",
			},
			[]string{"stage"},
		)
		pushNotifications = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "push_notifications_total",
				Help: "Total push notifications by result",
			},
			[]string{"result"},
		)
		statisticsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statistics_computations_total",
				Help: "Total statistics computations by source and result",
			},
			[]string{"source", "result"},
		)
		statisticsLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statistics_latency_seconds",
				Help:    "Statistics fetch and aggregation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)
		activeSubscribers = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_event_streams",
				Help: "Currently open realtime event streams",
			},
		)
		memoCacheEntries = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "memo_cache_entries",
				Help: "Entries held by the in-process event list cache",
			},
		)
		cachedSnapshots = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "cached_snapshots",
				Help: "Device snapshots currently present in Redis",
			},
		)

		prometheus.MustRegister(
			eventsIngested,
			ingestErrors,
			pushNotifications,
			statisticsTotal,
			statisticsLatency,
			activeSubscribers,
			memoCacheEntries,
			cachedSnapshots,
		)
	})
}

// IncEventIngested 记录一条已落库的事件
func IncEventIngested(eventType string) {
	if eventsIngested != nil {
		eventsIngested.WithLabelValues(eventType).Inc()
	}
}

// IncIngestError 记录接入失败（decode / persist / ack ...）
func IncIngestError(stage string) {
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(stage).Inc()
	}
}

// AddPushNotifications 记录推送结果
func AddPushNotifications(result string, n int) {
	if pushNotifications != nil && n > 0 {
		pushNotifications.WithLabelValues(result).Add(float64(n))
	}
}

// ObserveStatistics 记录一次统计计算
// source: cache / database / memo
func ObserveStatistics(source, result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if statisticsTotal != nil {
		statisticsTotal.WithLabelValues(source, result).Inc()
	}
	if statisticsLatency != nil {
		statisticsLatency.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// StreamOpened / StreamClosed 实时事件流计数
func StreamOpened() {
	if activeSubscribers != nil {
		activeSubscribers.Inc()
	}
}

func StreamClosed() {
	if activeSubscribers != nil {
		activeSubscribers.Dec()
	}
}

// SetMemoCacheEntries 更新进程内缓存条目数
func SetMemoCacheEntries(n int) {
	if memoCacheEntries != nil {
		memoCacheEntries.Set(float64(n))
	}
}

// SetCachedSnapshots 更新 Redis 中快照数量
func SetCachedSnapshots(n int) {
	if cachedSnapshots != nil {
		cachedSnapshots.Set(float64(n))
	}
}
