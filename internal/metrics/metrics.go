package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livetrack_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetrack_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WebSocket метрики
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livetrack_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesOut = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetrack_websocket_messages_out_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)

	WebSocketErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livetrack_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
	)

	// MQTT метрики
	MQTTMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetrack_mqtt_messages_received_total",
			Help: "Total number of MQTT messages received",
		},
		[]string{"topic_type"},
	)

	MQTTParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livetrack_mqtt_parse_errors_total",
			Help: "Total number of MQTT message parse errors",
		},
	)

	MQTTConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livetrack_mqtt_connection_status",
			Help: "MQTT connection status (1 = connected, 0 = disconnected)",
		},
	)

	// Redis метрики
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livetrack_redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	RedisOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetrack_redis_operation_errors_total",
			Help: "Total number of Redis operation errors",
		},
		[]string{"operation"},
	)

	// MySQL метрики
	MySQLQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livetrack_mysql_query_duration_seconds",
			Help:    "Duration of MySQL queries in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"query"},
	)

	MySQLQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetrack_mysql_query_errors_total",
			Help: "Total number of MySQL query errors",
		},
		[]string{"query"},
	)

	// Метрики расчета
	PositionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetrack_positions_processed_total",
			Help: "Total number of track positions processed by calculators",
		},
		[]string{"source"}, // live, history, interpolated
	)

	PositionsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetrack_positions_dropped_total",
			Help: "Total number of track positions dropped before calculation",
		},
		[]string{"reason"}, // duplicate, outside_window, unknown_device
	)

	ScoreEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetrack_score_entries_total",
			Help: "Total number of score log entries produced",
		},
		[]string{"score_type"},
	)

	ActiveCalculators = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livetrack_active_calculators",
			Help: "Number of competitor calculation workers currently running",
		},
	)

	DelayQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "livetrack_delay_queue_depth",
			Help: "Number of positions waiting in delay queues",
		},
		[]string{"competitor"},
	)

	// Общие метрики приложения
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "livetrack_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "build_time"},
	)

	// Database connection status
	MySQLConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livetrack_mysql_connection_status",
			Help: "MySQL connection status (1 = connected, 0 = disconnected)",
		},
	)

	RedisConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livetrack_redis_connection_status",
			Help: "Redis connection status (1 = connected, 0 = disconnected)",
		},
	)
)

// SetAppInfo устанавливает информацию о версии приложения
func SetAppInfo(version, commit, buildTime string) {
	AppInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
