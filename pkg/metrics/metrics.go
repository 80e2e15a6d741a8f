package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "catalogserver"

	metricLabelHandler   = "handler"
	metricLabelStatus    = "status"
	metricLabelSource    = "source"
	metricLabelOperation = "operation"
)

// Metrics is the structure that holds all prometheus metrics
var (
	// ServiceRequestCounter count the number of requests for each route
	ServiceRequestCounter = newCounterVec(
		"service_request_count",
		"Count of requests for each handler",
		metricLabelHandler, metricLabelStatus,
	)
	// ServiceRequestDuration observe the duration of requests for each route
	ServiceRequestDuration = newSummaryVec(
		"service_request_duration_seconds",
		"Seconds to unmarshal requests, execute a catalog operation and marshal its reponses",
		metricLabelHandler, metricLabelStatus,
	)
	// MutationsCounter count catalog mutations per operation and outcome
	MutationsCounter = newCounterVec(
		"mutations_count",
		"Number of catalog mutations",
		metricLabelOperation, metricLabelStatus,
	)
	// LoadCounter count successful loads per resolved source
	LoadCounter = newCounterVec(
		"load_count",
		"Number of catalog loads per source",
		metricLabelSource,
	)
	// LoadFailedCounter count loads where no source resolved
	LoadFailedCounter = newCounterVec(
		"load_failed_count",
		"Number of catalog loads that failed for every source",
	)
	// LoadDuration observe the duration of each load
	LoadDuration = newSummaryVec(
		"load_duration_seconds",
		"Duration in seconds for each successful load",
		metricLabelSource,
	)
	// PersistFailedCounter count failed writes to the snapshot slot
	PersistFailedCounter = newCounterVec(
		"persist_failed_count",
		"Number of failures to store the catalog snapshot",
	)
	// SearchRequestCounter count the number of catalog searches
	SearchRequestCounter = newCounterVec(
		"search_request_count",
		"Number of catalog searches",
	)
	// LeavesGauge number of leaves in the catalog after the last change
	LeavesGauge = newGaugeVec(
		"leaves_total",
		"Number of leaves in the catalog",
	)
	// SubscribersGauge keep track of the number of change subscribers
	SubscribersGauge = newGaugeVec(
		"subscribers_total",
		"Number of currently registered change subscribers",
	)
	// EventsCounter count delivered change events
	EventsCounter = newCounterVec(
		"events_count",
		"Number of change events published",
		metricLabelOperation,
	)
)

func newSummaryVec(name, help string, labels ...string) *prometheus.SummaryVec {
	vec := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newGaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}
