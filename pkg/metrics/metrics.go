// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal tracks command log mutations by operation
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "edit",
			Name:      "commands_total",
			Help:      "Total number of command log mutations by operation",
		},
		[]string{"op"},
	)

	// UndoTotal tracks undo, redo and reset operations
	UndoTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "edit",
			Name:      "undo_total",
			Help:      "Total number of undo, redo and reset operations",
		},
		[]string{"op"},
	)

	// QueueRebuildsTotal tracks how often the merged queues are recomputed
	QueueRebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "edit",
			Name:      "queue_rebuilds_total",
			Help:      "Total number of command queue rebuilds",
		},
	)

	// SavesTotal tracks save attempts by status
	SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "save",
			Name:      "saves_total",
			Help:      "Total number of save attempts by status",
		},
		[]string{"status"},
	)

	// SaveDuration tracks save duration in seconds
	SaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "save",
			Name:      "duration_seconds",
			Help:      "Duration of saves in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)

	// PersistActionsTotal tracks executed persist actions by kind and status
	PersistActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "save",
			Name:      "persist_actions_total",
			Help:      "Total number of persist actions executed by kind and status",
		},
		[]string{"kind", "status"},
	)

	// SessionsActive tracks open editing sessions
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of open editing sessions",
		},
	)

	// SaveLockContention tracks lock attempts that found the save lock held
	SaveLockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "session",
			Name:      "save_lock_contention_total",
			Help:      "Total number of save lock attempts that found the lock held",
		},
	)

	// EventsPublishedTotal tracks edit events written to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of edit events published by type and status",
		},
		[]string{"type", "status"},
	)

	// JournalStatementsTotal tracks statements recorded in the persist journal
	JournalStatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "journal",
			Name:      "statements_total",
			Help:      "Total number of executed statements by outcome",
		},
		[]string{"status"},
	)
)
