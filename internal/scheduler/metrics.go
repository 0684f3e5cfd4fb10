package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentd",
			Subsystem: "scheduler",
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks accepted into the queue",
		},
		[]string{"lane"},
	)

	tasksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentd",
			Subsystem: "scheduler",
			Name:      "tasks_finished_total",
			Help:      "Total number of tasks reaching a terminal state",
		},
		[]string{"lane", "status"},
	)

	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentd",
			Subsystem: "scheduler",
			Name:      "rejections_total",
			Help:      "Total submissions rejected",
		},
		[]string{"reason"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentd",
			Subsystem: "scheduler",
			Name:      "task_duration_seconds",
			Help:      "Execution time of task bodies in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"lane"},
	)

	runningTasks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "agentd",
			Subsystem: "scheduler",
			Name:      "running_tasks",
			Help:      "Task bodies currently executing",
		},
		[]string{"lane"},
	)

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentd",
		Subsystem: "scheduler",
		Name:      "queue_depth",
		Help:      "Tasks waiting for a worker",
	})

	workersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentd",
		Subsystem: "scheduler",
		Name:      "workers",
		Help:      "Worker loops started",
	})

	tasksCleaned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "agentd",
		Subsystem: "scheduler",
		Name:      "tasks_cleaned_total",
		Help:      "Terminal tasks removed by garbage collection",
	})
)

func init() {
	prometheus.MustRegister(tasksSubmitted, tasksFinished, rejections, taskDuration, runningTasks, queueDepth, workersGauge, tasksCleaned)
}
