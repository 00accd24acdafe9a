package server

import (
	"strconv"
	"sync"
	"time"

	"judgebox/internal/judge/queue"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes queue and request counters to Prometheus.
type Metrics struct {
	InFlight  prometheus.Gauge
	Waiting   prometheus.Gauge
	Processed prometheus.Gauge
	Failed    prometheus.Gauge
	Requests  *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// newMetrics registers the collectors once; the default registry rejects
// duplicates.
func newMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInst = buildMetrics()
	})
	return metricsInst
}

func buildMetrics() *Metrics {
	return &Metrics{
		InFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "judge_queue_in_flight",
			Help: "Submissions currently executing in the sandbox",
		}),
		Waiting: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "judge_queue_waiting",
			Help: "Submissions waiting for an execution slot",
		}),
		Processed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "judge_queue_processed_total",
			Help: "Tasks the queue has completed since boot",
		}),
		Failed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "judge_queue_failed_total",
			Help: "Tasks that completed with a failure since boot",
		}),
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "status"}),
	}
}

// observeQueue copies a queue snapshot into the gauges.
func (m *Metrics) observeQueue(status queue.Status) {
	m.InFlight.Set(float64(status.InFlight))
	m.Waiting.Set(float64(status.Waiting))
	m.Processed.Set(float64(status.TotalProcessed))
	m.Failed.Set(float64(status.TotalFailed))
}

// watchQueue refreshes the gauges until stop is closed.
func (m *Metrics) watchQueue(statusFn func() queue.Status, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.observeQueue(statusFn())
		case <-stop:
			return
		}
	}
}

// countRequests feeds the request counter from completed requests.
func (m *Metrics) countRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
