package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cv_analyser_generation_attempts_total",
			Help: "Total number of calls made to the text-generation provider.",
		},
		[]string{"model", "outcome"}, // outcome: success, transient, permanent, empty
	)
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cv_analyser_generation_duration_seconds",
			Help:    "Duration of individual text-generation calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"model"},
	)
	analysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cv_analyser_analyses_total",
			Help: "Total number of analyses by final status.",
		},
		[]string{"status"},
	)
)
