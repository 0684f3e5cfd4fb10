package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Status() types.StatusResponse
	Tasks() []types.Task
	Task(id string) (types.Task, error)
	// CancelTask returns Cancelled=false when the task already finished.
	CancelTask(id string) (types.CancelResponse, error)
	Resources() types.ResourcesResponse
	Optimize(ctx context.Context) types.OptimizeResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(accessLog)
	if corsEnabled {
		origins, methods, headers := corsSettings()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: methods,
			AllowedHeaders: headers,
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}
	r.Group(func(r chi.Router) {
		r.Use(inflightMiddleware)
		r.Get("/status", h.status)
		r.Get("/tasks", h.listTasks)
		r.Get("/tasks/{id}", h.getTask)
		r.Delete("/tasks/{id}", h.cancelTask)
		r.Get("/resources", h.resources)
		r.Post("/resources/optimize", h.optimize)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

type handlers struct{ svc Service }

// status godoc
// @Summary      Scheduler and resource summary
// @Tags         status
// @Produce      json
// @Success      200 {object} types.StatusResponse
// @Router       /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// listTasks godoc
// @Summary      List pending and running tasks
// @Tags         tasks
// @Produce      json
// @Success      200 {object} types.TasksResponse
// @Router       /tasks [get]
func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.svc.Tasks()
	if tasks == nil {
		tasks = []types.Task{}
	}
	writeJSON(w, http.StatusOK, types.TasksResponse{Tasks: tasks})
}

// getTask godoc
// @Summary      Task status
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Success      200 {object} types.Task
// @Failure      404 {object} types.ErrorResponse
// @Router       /tasks/{id} [get]
func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Task(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// cancelTask godoc
// @Summary      Cancel a task
// @Description  Pending tasks are cancelled immediately; running tasks are asked to stop.
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Success      200 {object} types.CancelResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      409 {object} types.CancelResponse "task already finished"
// @Router       /tasks/{id} [delete]
func (h *handlers) cancelTask(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CancelTask(chi.URLParam(r, "id"))
	if err != nil {
		observeCancel("not_found")
		writeServiceError(w, err)
		return
	}
	if !res.Cancelled {
		observeCancel("noop")
		writeJSON(w, http.StatusConflict, res)
		return
	}
	observeCancel("cancelled")
	writeJSON(w, http.StatusOK, res)
}

// resources godoc
// @Summary      Resource usage and registered models
// @Tags         resources
// @Produce      json
// @Success      200 {object} types.ResourcesResponse
// @Router       /resources [get]
func (h *handlers) resources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Resources())
}

// optimize godoc
// @Summary      Run remediation for the current pressure once
// @Tags         resources
// @Produce      json
// @Success      200 {object} types.OptimizeResponse
// @Router       /resources/optimize [post]
func (h *handlers) optimize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := operationContext(r, optimizeTimeout)
	defer cancel()
	writeJSON(w, http.StatusOK, h.svc.Optimize(ctx))
}
