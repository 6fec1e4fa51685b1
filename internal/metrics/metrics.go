// Package metrics provides Prometheus instrumentation for the game service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spikeyfun",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spikeyfun",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// WagersTotal counts submitted wagers and draws by game.
	WagersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spikeyfun",
			Name:      "wagers_total",
			Help:      "Total wagers and prize draws submitted, by game.",
		},
		[]string{"game"},
	)

	// SettlementsTotal counts settled requests by game and outcome.
	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spikeyfun",
			Name:      "settlements_total",
			Help:      "Total settled randomness requests by game and outcome.",
		},
		[]string{"game", "outcome"},
	)

	// RefundsTotal counts timeout refunds by game.
	RefundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spikeyfun",
			Name:      "refunds_total",
			Help:      "Total timeout refunds issued, by game.",
		},
		[]string{"game"},
	)

	// OracleCallbacksTotal counts oracle callbacks by result.
	OracleCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spikeyfun",
			Name:      "oracle_callbacks_total",
			Help:      "Total oracle fulfillment callbacks by result (settled, noop, rejected).",
		},
		[]string{"result"},
	)

	// PendingRequests tracks the number of in-flight randomness requests.
	PendingRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "spikeyfun",
		Name:      "pending_requests",
		Help:      "Number of randomness requests awaiting fulfillment or refund.",
	})

	// TreasuryBalance tracks the treasury's coin balance in base units.
	TreasuryBalance = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "spikeyfun",
		Name:      "treasury_balance",
		Help:      "Treasury coin balance in base units.",
	})

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "spikeyfun",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WagersTotal,
		SettlementsTotal,
		RefundsTotal,
		OracleCallbacksTotal,
		PendingRequests,
		TreasuryBalance,
		ActiveWebSocketClients,
	)
}

// Middleware records request counts and latency for every route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
