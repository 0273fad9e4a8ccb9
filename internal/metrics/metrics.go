// Package metrics exposes Prometheus counters for document generation and
// archiving.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "entrydocs"

type Metrics struct {
	reg *prometheus.Registry

	generations         *prometheus.CounterVec
	generationSeconds   *prometheus.HistogramVec
	missingParticipants *prometheus.CounterVec
	foldersCreated      prometheus.Counter
	uploads             *prometheus.CounterVec
}

// New registers every collector on a private registry, plus the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Document generation runs by region and outcome.",
		}, []string{"region", "status"}),
		generationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a generation run including upload.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"region"}),
		missingParticipants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_participants_total",
			Help:      "Participant references that did not resolve during enrichment.",
		}, []string{"slot"}),
		foldersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_folders_created_total",
			Help:      "Folders created in the archive.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_uploads_total",
			Help:      "Archived documents by bundle key and result.",
		}, []string{"key", "result"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.generations, m.generationSeconds, m.missingParticipants, m.foldersCreated, m.uploads,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveGeneration(regionID int, status string, d time.Duration) {
	region := strconv.Itoa(regionID)
	m.generations.WithLabelValues(region, status).Inc()
	m.generationSeconds.WithLabelValues(region).Observe(d.Seconds())
}

func (m *Metrics) MissingParticipant(slot string) {
	m.missingParticipants.WithLabelValues(slot).Inc()
}

func (m *Metrics) FolderCreated() { m.foldersCreated.Inc() }

func (m *Metrics) FileUploaded(key string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.uploads.WithLabelValues(key, result).Inc()
}
