// Package metrics exposes Prometheus collectors for the watcher and the
// dispatch loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Queue labels.
const (
	QueueRender = "render"
	QueueDelete = "delete"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderwatch_events_total",
			Help: "File-system events delivered to the listener",
		},
		[]string{"action"},
	)

	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderwatch_decisions_total",
			Help: "Filter decisions for delivered events",
		},
		[]string{"decision"},
	)

	queuePushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderwatch_queue_pushes_total",
			Help: "Queue push attempts by outcome",
		},
		[]string{"queue", "result"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "renderwatch_queue_depth",
			Help: "Paths currently waiting in each queue",
		},
		[]string{"queue"},
	)

	watchSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderwatch_watch_sessions_total",
			Help: "Watch sessions by outcome",
		},
		[]string{"result"},
	)

	sourceActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "renderwatch_source_active",
			Help: "1 while a notification source is registered and delivering",
		},
	)

	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderwatch_dispatch_total",
			Help: "Render collaborator calls by operation and outcome",
		},
		[]string{"op", "result"},
	)
)

// RecordEvent counts a delivered event and the decision taken for it.
func RecordEvent(action, decision string) {
	eventsTotal.WithLabelValues(action).Inc()
	decisionsTotal.WithLabelValues(decision).Inc()
}

// RecordPush counts a push attempt on queue and updates its depth.
func RecordPush(queue string, inserted bool, depth int) {
	result := "duplicate"
	if inserted {
		result = "inserted"
	}
	queuePushesTotal.WithLabelValues(queue, result).Inc()
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// SetQueueDepth records the current length of queue.
func SetQueueDepth(queue string, depth int) {
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordSession counts a watch session start ("started") or failure.
func RecordSession(result string) {
	watchSessionsTotal.WithLabelValues(result).Inc()
}

// SetSourceActive flips the source gauge.
func SetSourceActive(active bool) {
	if active {
		sourceActive.Set(1)
		return
	}
	sourceActive.Set(0)
}

// RecordDispatch counts a start/stop call on the render collaborator.
func RecordDispatch(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	dispatchTotal.WithLabelValues(op, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
