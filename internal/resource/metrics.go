package resource

import "github.com/prometheus/client_golang/prometheus"

var (
	resourceUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "agentd",
			Subsystem: "resource",
			Name:      "usage_percent",
			Help:      "Last sampled utilisation per resource",
		},
		[]string{"resource"},
	)

	resourceState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "agentd",
			Subsystem: "resource",
			Name:      "pressure_state",
			Help:      "Pressure state per resource (0=normal, 1=warning, 2=critical, 3=emergency)",
		},
		[]string{"resource"},
	)

	processMemory = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentd",
		Subsystem: "resource",
		Name:      "process_memory_mb",
		Help:      "Resident memory of the process in MB",
	})

	modelsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentd",
		Subsystem: "resource",
		Name:      "models_loaded",
		Help:      "Registered models currently loaded",
	})

	evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentd",
			Subsystem: "resource",
			Name:      "evictions_total",
			Help:      "Total model unloads performed by the manager",
		},
		[]string{"reason"},
	)

	remediationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentd",
			Subsystem: "resource",
			Name:      "remediations_total",
			Help:      "Total remediation tiers applied",
		},
		[]string{"state"},
	)

	callbackFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "agentd",
		Subsystem: "resource",
		Name:      "cleanup_callback_failures_total",
		Help:      "Memory cleanup callbacks that returned an error or panicked",
	})

	cacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentd",
		Subsystem: "resource",
		Name:      "cache_size_mb",
		Help:      "Logical cache size counter in MB",
	})
)

func init() {
	prometheus.MustRegister(resourceUsage, resourceState, processMemory, modelsLoaded, evictionsTotal, remediationsTotal, callbackFailures, cacheSize)
}

func observeUsage(u Usage) {
	resourceUsage.WithLabelValues(string(CPU)).Set(u.CPUPercent)
	resourceUsage.WithLabelValues(string(Memory)).Set(u.SystemMemoryPercent)
	resourceUsage.WithLabelValues(string(Disk)).Set(u.DiskPercent)
	if u.HasGPU {
		resourceUsage.WithLabelValues(string(GPUMemory)).Set(u.GPUMemoryPercent)
	}
	processMemory.Set(u.ProcessMemoryMB)
}
