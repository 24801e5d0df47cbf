package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuotesCalculatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equotemanager_quotes_calculated_total",
			Help: "Total number of successful price calculations per variant",
		},
		[]string{"variant"},
	)

	QuoteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equotemanager_quote_errors_total",
			Help: "Total number of rejected price calculations per variant and reason",
		},
		[]string{"variant", "reason"},
	)

	QuotePriceDollars = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equotemanager_quote_price_dollars",
			Help:    "Distribution of quoted prices in dollars per variant and bound",
			Buckets: []float64{50, 100, 150, 200, 300, 400, 600, 800, 1200, 2000, 5000},
		},
		[]string{"variant", "bound"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equotemanager_http_request_duration_seconds",
			Help:    "Request duration in seconds per route and method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equotemanager_http_request_errors_total",
			Help: "Total number of error responses per route and code",
		},
		[]string{"route", "code"},
	)

	LeadsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equotemanager_leads_created_total",
			Help: "Total number of leads created per source",
		},
		[]string{"source"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equotemanager_notifications_total",
			Help: "Notifications sent per channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
)

// ObserveQuote records a successful calculation.
func ObserveQuote(variant string, priceMin, priceMax int64) {
	QuotesCalculatedTotal.WithLabelValues(variant).Inc()
	QuotePriceDollars.WithLabelValues(variant, "min").Observe(float64(priceMin))
	QuotePriceDollars.WithLabelValues(variant, "max").Observe(float64(priceMax))
}

// ObserveNotification records the outcome of a best-effort send.
func ObserveNotification(channel string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	NotificationsTotal.WithLabelValues(channel, outcome).Inc()
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "equotemanager_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "equotemanager_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equotemanager_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)

	StaleLeads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "equotemanager_stale_leads",
			Help: "Leads still in status new past the follow-up threshold at the last worker run",
		},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
