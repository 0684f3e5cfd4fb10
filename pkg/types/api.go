package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: task not found
	Error string `json:"error" example:"task not found"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// Task is the JSON view of a scheduled task.
type Task struct {
	// example: 6f1c2a9e-2f0b-4d1e-9a53-0d7d3c0f5b1e
	ID string `json:"id" example:"6f1c2a9e-2f0b-4d1e-9a53-0d7d3c0f5b1e"`
	// example: embed-batch
	Name string `json:"name" example:"embed-batch"`
	// One of low, medium, high, critical.
	// example: medium
	Priority string `json:"priority" example:"medium"`
	// One of default, cpu_bound, gpu_bound.
	// example: gpu_bound
	Type string `json:"type" example:"gpu_bound"`
	// One of pending, running, completed, failed, cancelled.
	// example: running
	Status          string `json:"status" example:"running"`
	CreatedAtUnix   int64  `json:"created_at_unix" example:"1700000000"`
	StartTimeUnix   int64  `json:"start_time_unix,omitempty" example:"1700000001"`
	EndTimeUnix     int64  `json:"end_time_unix,omitempty"`
	Error           string `json:"error,omitempty"`
	CancelRequested bool   `json:"cancel_requested"`
}

// TasksResponse is returned by GET /tasks.
type TasksResponse struct {
	Tasks []Task `json:"tasks"`
}

// CancelResponse is returned by DELETE /tasks/{id}.
type CancelResponse struct {
	// example: 6f1c2a9e-2f0b-4d1e-9a53-0d7d3c0f5b1e
	ID string `json:"id"`
	// False when the task had already finished.
	// example: true
	Cancelled bool `json:"cancelled" example:"true"`
	// Status after the request.
	// example: cancelled
	Status string `json:"status" example:"cancelled"`
}

// SchedulerStatus summarizes the task scheduler for /status.
type SchedulerStatus struct {
	Running bool `json:"running" example:"true"`
	// example: 3
	QueueLen int `json:"queue_len" example:"3"`
	// Task counts keyed by status.
	Counts map[string]int `json:"counts"`
}

// ModelStatus describes a model under resource management.
type ModelStatus struct {
	// example: tinyllama-q4_k_m.gguf
	ID string `json:"id" example:"tinyllama-q4_k_m.gguf"`
	// example: llm
	Type string `json:"type" example:"llm"`
	// One of idle, low, medium, high.
	// example: medium
	Priority string `json:"priority" example:"medium"`
	// example: 638
	MemoryMB     float64 `json:"memory_mb" example:"638"`
	Loaded       bool    `json:"loaded" example:"true"`
	LastUsedUnix int64   `json:"last_used_unix" example:"1700000000"`
	UsageCount   int64   `json:"usage_count" example:"12"`
}

// Usage is a resource usage sample.
type Usage struct {
	CPUPercent          float64 `json:"cpu_percent" example:"23.5"`
	ProcessMemoryMB     float64 `json:"process_memory_mb" example:"412"`
	SystemMemoryPercent float64 `json:"system_memory_percent" example:"61.2"`
	DiskPercent         float64 `json:"disk_percent" example:"48"`
	// GPU fields are omitted when no accelerator is present.
	GPUMemoryPercent *float64 `json:"gpu_memory_percent,omitempty" example:"40"`
	GPUMemoryTotalMB *float64 `json:"gpu_memory_total_mb,omitempty" example:"8192"`
}

// ResourcesResponse is returned by GET /resources.
type ResourcesResponse struct {
	Usage Usage `json:"usage"`
	// Pressure state of the last remediation tick.
	// example: normal
	State          string        `json:"state" example:"normal"`
	Models         []ModelStatus `json:"models"`
	LoadedModels   int           `json:"loaded_models" example:"1"`
	LoadedMemoryMB float64       `json:"loaded_memory_mb" example:"638"`
	CacheHits      uint64        `json:"cache_hits"`
	CacheMisses    uint64        `json:"cache_misses"`
	CacheSizeMB    float64       `json:"cache_size_mb"`
	CacheLimitMB   float64       `json:"cache_limit_mb" example:"2048"`
	EvictionsTotal uint64        `json:"evictions_total"`
	LowMemoryMode  bool          `json:"low_memory_mode"`
	// Recommended load precision (fp4, fp8, fp16).
	// example: fp16
	Precision string `json:"precision" example:"fp16"`
}

// OptimizeResponse is returned by POST /resources/optimize.
type OptimizeResponse struct {
	// Pressure state the remediation acted on.
	// example: critical
	State string `json:"state" example:"critical"`
	// Models resident after remediation.
	LoadedModels int `json:"loaded_models" example:"1"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Scheduler SchedulerStatus `json:"scheduler"`
	// example: normal
	ResourceState string `json:"resource_state" example:"normal"`
	LoadedModels  int    `json:"loaded_models" example:"1"`
	TotalModels   int    `json:"total_models" example:"2"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
