package orgsync

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/temirov/depbot/internal/ecosystemcache"
	"github.com/temirov/depbot/internal/ecosystems"
)

const (
	metricsNamespaceConstant             = "depbot"
	metricsSubsystemConstant             = "sync"
	metricsActionLabelConstant           = "action"
	metricsOutcomeLabelConstant          = "outcome"
	metricsEcosystemLabelConstant        = "ecosystem"
	metricsCacheHitLabelConstant         = "hit"
	metricsCacheMissLabelConstant        = "miss"
	metricsTextfileWriteTemplateConstant = "write metrics to %s: %w"
)

// RunMetrics records the counters of one sync run in a private registry.
type RunMetrics struct {
	registry           *prometheus.Registry
	repositories       *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	detectedEcosystems *prometheus.CounterVec
	repositoryDuration prometheus.Histogram
}

// NewRunMetrics registers the sync metrics in a fresh registry.
func NewRunMetrics() *RunMetrics {
	runMetrics := &RunMetrics{
		registry: prometheus.NewRegistry(),
		repositories: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespaceConstant,
				Subsystem: metricsSubsystemConstant,
				Name:      "repositories_total",
				Help:      "Repositories processed by reconciliation outcome.",
			},
			[]string{metricsActionLabelConstant},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespaceConstant,
				Subsystem: metricsSubsystemConstant,
				Name:      "ecosystem_cache_lookups_total",
				Help:      "Ecosystem cache lookups by outcome.",
			},
			[]string{metricsOutcomeLabelConstant},
		),
		detectedEcosystems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespaceConstant,
				Subsystem: metricsSubsystemConstant,
				Name:      "detected_ecosystems_total",
				Help:      "Detected (ecosystem, directory) entries by ecosystem.",
			},
			[]string{metricsEcosystemLabelConstant},
		),
		repositoryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespaceConstant,
				Subsystem: metricsSubsystemConstant,
				Name:      "repository_duration_seconds",
				Help:      "Time taken to process one repository.",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
	runMetrics.registry.MustRegister(
		runMetrics.repositories,
		runMetrics.cacheLookups,
		runMetrics.detectedEcosystems,
		runMetrics.repositoryDuration,
	)
	return runMetrics
}

func (runMetrics *RunMetrics) observeRepository(outcomeLabel string, duration time.Duration) {
	if runMetrics == nil {
		return
	}
	runMetrics.repositories.WithLabelValues(outcomeLabel).Inc()
	runMetrics.repositoryDuration.Observe(duration.Seconds())
}

func (runMetrics *RunMetrics) observeCacheLookup(lookup ecosystemcache.LookupResult) {
	if runMetrics == nil {
		return
	}
	outcomeLabel := metricsCacheMissLabelConstant
	if lookup.Hit() {
		outcomeLabel = metricsCacheHitLabelConstant
	}
	runMetrics.cacheLookups.WithLabelValues(outcomeLabel).Inc()
}

func (runMetrics *RunMetrics) observeDetection(detection ecosystems.DetectionResult) {
	if runMetrics == nil {
		return
	}
	for _, entry := range detection.Entries {
		runMetrics.detectedEcosystems.WithLabelValues(string(entry.Ecosystem)).Inc()
	}
}

// Gatherer exposes the registry for inspection.
func (runMetrics *RunMetrics) Gatherer() prometheus.Gatherer {
	return runMetrics.registry
}

// WriteTextfile writes the metrics in the node exporter textfile format.
func (runMetrics *RunMetrics) WriteTextfile(filePath string) error {
	if writeError := prometheus.WriteToTextfile(filePath, runMetrics.registry); writeError != nil {
		return fmt.Errorf(metricsTextfileWriteTemplateConstant, filePath, writeError)
	}
	return nil
}
