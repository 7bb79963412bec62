// Package metrics holds the Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Unlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "community",
		Subsystem: "milestones",
		Name:      "unlocks_total",
		Help:      "Unlock attempts by result (new, duplicate, error).",
	}, []string{"result"})

	SyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "community",
		Subsystem: "milestones",
		Name:      "sync_failures_total",
		Help:      "Remote milestone sync attempts that failed.",
	})

	StorageFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "community",
		Subsystem: "milestones",
		Name:      "storage_failures_total",
		Help:      "Unlocked-set writes that could not be persisted.",
	})

	FormRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "community",
		Subsystem: "forms",
		Name:      "rejections_total",
		Help:      "Form submissions rejected by validation, by schema.",
	}, []string{"schema"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "community",
		Subsystem: "milestones",
		Name:      "stream_clients",
		Help:      "Open achievement event streams.",
	})
)
