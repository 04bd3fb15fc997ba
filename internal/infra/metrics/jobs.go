package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobRunsTotal, jobItemsTotal) }

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sched_job_runs_total",
			Help: "Scheduled job runs, labeled by job and result.",
		},
		[]string{"job", "result"}, // result: 'ok', 'error'
	)

	jobItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sched_job_items_total",
			Help: "Items handled by scheduled jobs, labeled by job and outcome.",
		},
		[]string{"job", "outcome"},
	)
)

func IncJobRun(job, result string) {
	jobRunsTotal.WithLabelValues(norm(job), norm(result)).Inc()
}

func AddJobItems(job, outcome string, n int) {
	jobItemsTotal.WithLabelValues(norm(job), norm(outcome)).Add(float64(n))
}
