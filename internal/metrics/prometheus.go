package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmind_queries_total",
			Help: "Total number of queries processed",
		},
		[]string{"domain", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docmind_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"domain"},
	)

	AnswerConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docmind_answer_confidence",
			Help:    "Answer confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docmind_cache_hits_total",
			Help: "Total answer cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docmind_cache_misses_total",
			Help: "Total answer cache misses",
		},
	)

	GateRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docmind_gate_rejections_total",
			Help: "Queries where retrieval produced no chunk above the similarity threshold",
		},
	)

	GenerationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docmind_generation_failures_total",
			Help: "Total generation failures after retries",
		},
	)

	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docmind_retrieved_chunks_count",
			Help:    "Number of chunks passing the gate per content query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	ActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docmind_active_streams",
			Help: "Currently open streaming sessions",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(AnswerConfidence)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(GateRejections)
	prometheus.MustRegister(GenerationFailures)
	prometheus.MustRegister(RetrievedChunks)
	prometheus.MustRegister(ActiveStreams)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
