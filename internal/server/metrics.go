package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Search outcomes reported by railrag_search_requests_total.
const (
	outcomeOK         = "ok"
	outcomeEmpty      = "empty"
	outcomeBadRequest = "bad_request"
	outcomeError      = "error"
)

type metrics struct {
	registry       *prometheus.Registry
	searchRequests *prometheus.CounterVec
	searchDuration prometheus.Histogram
	indexChunks    prometheus.GaugeFunc
}

func newMetrics(chunks func() float64) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		searchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railrag_search_requests_total",
			Help: "Search requests by outcome.",
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "railrag_search_duration_seconds",
			Help:    "Time spent answering search requests, embedding included.",
			Buckets: prometheus.DefBuckets,
		}),
		indexChunks: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "railrag_index_chunks",
			Help: "Chunks in the loaded generation.",
		}, chunks),
	}
	m.registry.MustRegister(
		m.searchRequests,
		m.searchDuration,
		m.indexChunks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
