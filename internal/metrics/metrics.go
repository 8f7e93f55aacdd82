// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DraftsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "draft_created_total",
			Help: "Cumulative number of drafts created from submitted briefs.",
		})

	DraftTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_transitions_total",
			Help: "Draft status transitions, labelled by from and to status.",
		}, []string{"from", "to"})

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Site Provider calls by operation and outcome.",
		}, []string{"op", "outcome"})

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Latency of Site Provider calls.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"op"})

	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "Stage retries caused by transient provider errors.",
		}, []string{"op"})

	ResumerAdvancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumer_advances_total",
			Help: "Background resumer advance attempts by outcome.",
		}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		DraftsCreatedTotal,
		DraftTransitionsTotal,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ProviderRetriesTotal,
		ResumerAdvancesTotal,
	)
}
