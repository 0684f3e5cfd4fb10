package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"agentd/internal/common/fsutil"
	"agentd/internal/config"
	"agentd/internal/httpapi"
	"agentd/internal/lifecycle"
	"agentd/internal/llm"
	"agentd/internal/registry"
	"agentd/internal/resource"
	"agentd/internal/scheduler"
)

const (
	serviceScheduler = "scheduler"
	serviceResources = "resources"
	serviceModels    = "models"
	serviceAPI       = "api"
)

// daemon wires the scheduler, the resource manager and the admin API into
// one process whose services start and stop through a lifecycle registry.
type daemon struct {
	cfg   config.Config
	log   zerolog.Logger
	sched *scheduler.Scheduler
	mgr   *resource.Manager
	core  *httpapi.Core
	lc    *lifecycle.Registry
	// adapters is set by the models service and read by remediation.
	adapters atomic.Pointer[registry.Adapters]

	srv        *http.Server
	ln         net.Listener
	baseCtx    context.Context
	baseCancel context.CancelFunc
	// ready is closed once every service has initialized and the API is
	// about to serve.
	ready chan struct{}
}

// logPublisher forwards manager events to the process log.
type logPublisher struct{ log zerolog.Logger }

func (p logPublisher) Publish(e resource.Event) {
	ev := p.log.Debug()
	if e.Name == resource.EventModelUnloadFailed || e.Name == resource.EventCleanupCallbackFailed {
		ev = p.log.Warn()
	}
	ev.Str("event", e.Name).Str("model", e.ModelID).Fields(e.Fields).Msg("resource event")
}

func newDaemon(cfg config.Config, log zerolog.Logger) (*daemon, error) {
	d := &daemon{cfg: cfg, log: log, ready: make(chan struct{})}
	d.baseCtx, d.baseCancel = context.WithCancel(context.Background())

	d.sched = scheduler.New(scheduler.Config{
		Workers:         cfg.Scheduler.Workers,
		CPUPoolSize:     cfg.Scheduler.CPUPoolSize,
		MaxQueueDepth:   cfg.Scheduler.MaxQueueDepth,
		CleanupInterval: cfg.Scheduler.CleanupInterval(),
		Retention:       cfg.Scheduler.Retention(),
		Logger:          &d.log,
	})

	diskPath, err := fsutil.ExpandHome(cfg.Resources.DiskPath)
	if err != nil {
		return nil, err
	}
	sampler, err := resource.NewProcSampler(diskPath)
	if err != nil {
		return nil, fmt.Errorf("resource sampler: %w", err)
	}
	var accel resource.Accelerator
	if cfg.Resources.GPU {
		if smi, ok := resource.DetectNvidiaSMI(); ok {
			smi.Clear = d.releaseModelCaches
			accel = smi
		} else {
			log.Info().Msg("no nvidia-smi found; gpu memory not monitored")
		}
	}
	mon, err := resource.NewMonitor(resource.MonitorConfig{
		Sampler:           sampler,
		Accelerator:       accel,
		Thresholds:        cfg.Resources.ResourceThresholds(),
		MinSampleInterval: cfg.Resources.MinSampleInterval(),
		Logger:            &d.log,
	})
	if err != nil {
		return nil, err
	}
	d.mgr, err = resource.NewManager(resource.ManagerConfig{
		Monitor:            mon,
		Interval:           cfg.Resources.Interval(),
		ModelUnloadTimeout: cfg.Resources.ModelUnloadTimeout(),
		CacheLimitMB:       cfg.Resources.CacheLimitMB,
		LowMemoryMode:      cfg.Resources.LowMemoryMode,
		Publisher:          logPublisher{log: log},
		Logger:             &d.log,
	})
	if err != nil {
		return nil, err
	}
	// Under pressure, drop finished task records immediately instead of
	// waiting for the retention window.
	d.mgr.RegisterMemoryCleanupCallback(func(context.Context) error {
		if n := d.sched.CleanCompletedTasks(0); n > 0 {
			d.log.Debug().Int("removed", n).Msg("purged finished tasks")
		}
		return nil
	})

	d.core = httpapi.NewCore(d.sched, d.mgr)
	httpapi.SetLogger(log)
	httpapi.SetBaseContext(d.baseCtx)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)

	d.lc = lifecycle.New(&d.log)
	err = multierr.Combine(
		d.lc.Register(serviceScheduler, d.startScheduler, d.stopScheduler, lifecycle.PriorityScheduler),
		d.lc.Register(serviceResources, d.startResources, d.mgr.Stop, lifecycle.PriorityResources),
		d.lc.Register(serviceModels, d.initModels, d.shutdownModels, lifecycle.PriorityModels),
		d.lc.Register(serviceAPI, d.listen, d.shutdownAPI, lifecycle.PriorityAPI),
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *daemon) startScheduler(context.Context) error {
	d.sched.Start(d.cfg.Scheduler.Workers)
	return nil
}

func (d *daemon) stopScheduler(ctx context.Context) error {
	timeout := d.cfg.ShutdownTimeout()
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	d.sched.Stop(timeout)
	return nil
}

func (d *daemon) startResources(context.Context) error {
	d.mgr.Start()
	return nil
}

// initModels registers every model found in the models directory and queues
// the configured preloads on the GPU lane.
func (d *daemon) initModels(context.Context) error {
	prio, err := resource.ParseModelPriority(d.cfg.ModelPriority)
	if err != nil {
		return err
	}
	models, err := registry.LoadDir(d.cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("scan models: %w", err)
	}
	adapters, err := registry.Register(d.mgr, models, llm.FileFactory(), prio)
	d.adapters.Store(adapters)
	if err != nil {
		return err
	}
	d.log.Info().Str("dir", d.cfg.ModelsDir).Int("count", len(models)).Msg("models registered")

	var errs error
	for _, id := range d.cfg.PreloadModels {
		if _, ok := d.mgr.Model(id); !ok {
			errs = multierr.Append(errs, resource.ErrModelNotFound(id))
			continue
		}
		_, err := d.sched.ScheduleGPUTask(func(ctx context.Context) (any, error) {
			return nil, d.mgr.LoadModel(ctx, id)
		}, "preload:"+id)
		errs = multierr.Append(errs, err)
	}
	return errs
}

// releaseModelCaches is the accelerator cache-clear step of remediation:
// loaded models drop their warm caches without unloading.
func (d *daemon) releaseModelCaches(ctx context.Context) error {
	adapters := d.adapters.Load()
	if adapters == nil {
		return nil
	}
	return adapters.ReleaseCaches(ctx)
}

func (d *daemon) shutdownModels(ctx context.Context) error {
	var errs error
	for _, m := range d.mgr.Models() {
		errs = multierr.Append(errs, d.mgr.UnregisterModel(ctx, m.ID))
	}
	return errs
}

func (d *daemon) listen(context.Context) error {
	ln, err := net.Listen("tcp", d.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.cfg.Addr, err)
	}
	d.ln = ln
	d.srv = &http.Server{
		Handler:           httpapi.NewMux(d.core),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return d.baseCtx },
	}
	return nil
}

func (d *daemon) shutdownAPI(ctx context.Context) error {
	d.core.SetReady(false)
	d.baseCancel()
	if err := d.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// run initializes all services, serves the admin API until ctx is done and
// then shuts everything down in reverse order.
func (d *daemon) run(ctx context.Context) error {
	if err := d.lc.Init(ctx); err != nil {
		d.log.Warn().Err(err).Msg("some services failed to initialize")
	}
	if !d.lc.Started(serviceAPI) {
		d.baseCancel()
		sctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout())
		defer cancel()
		return multierr.Append(errors.New("admin api failed to start"), d.lc.Shutdown(sctx))
	}
	d.core.SetReady(true)
	close(d.ready)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.log.Info().Str("addr", d.ln.Addr().String()).Msg("agentd listening")
		if err := d.srv.Serve(d.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		d.log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout())
		defer cancel()
		return d.lc.Shutdown(sctx)
	})
	return g.Wait()
}
