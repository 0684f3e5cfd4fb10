// Package lifecycle sequences startup and shutdown of process services.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Priority tiers. Lower values initialize first and shut down last.
const (
	PriorityScheduler = 10
	PriorityResources = 20
	PriorityModels    = 50
	PriorityAPI       = 100
)

// Func initializes or shuts down a service.
type Func func(ctx context.Context) error

type service struct {
	name     string
	init     Func
	shutdown Func
	priority int
	seq      int
	// started is set once init succeeded.
	started bool
}

// Registry holds services in registration order and runs them by priority.
type Registry struct {
	log zerolog.Logger

	mu       sync.Mutex
	services []*service
	seq      int
}

// New returns an empty registry. A nil logger discards output.
func New(log *zerolog.Logger) *Registry {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Registry{log: log.With().Str("component", "lifecycle").Logger()}
}

// Register adds a service. Either func may be nil.
func (r *Registry) Register(name string, init, shutdown Func, priority int) error {
	if name == "" {
		return errors.New("service name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.services {
		if s.name == name {
			return fmt.Errorf("service %q already registered", name)
		}
	}
	r.seq++
	r.services = append(r.services, &service{name: name, init: init, shutdown: shutdown, priority: priority, seq: r.seq})
	return nil
}

// ordered returns services by ascending priority, registration order on ties.
func (r *Registry) ordered() []*service {
	out := append([]*service(nil), r.services...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Init runs every init func in ascending priority. A failing service is
// logged and skipped; the rest still initialize. The returned error
// combines every failure.
func (r *Registry) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs error
	for _, s := range r.ordered() {
		if s.started {
			continue
		}
		start := time.Now()
		if err := call(ctx, s.init); err != nil {
			r.log.Error().Err(err).Str("service", s.name).Int("priority", s.priority).Msg("service init failed")
			errs = multierr.Append(errs, fmt.Errorf("init %s: %w", s.name, err))
			continue
		}
		s.started = true
		r.log.Info().Str("service", s.name).Int("priority", s.priority).Dur("took", time.Since(start)).Msg("service initialized")
	}
	return errs
}

// Shutdown runs shutdown funcs of initialized services in reverse init
// order. Failures are logged and combined; every service is attempted.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	svcs := r.ordered()
	var errs error
	for i := len(svcs) - 1; i >= 0; i-- {
		s := svcs[i]
		if !s.started {
			continue
		}
		s.started = false
		if err := call(ctx, s.shutdown); err != nil {
			r.log.Error().Err(err).Str("service", s.name).Msg("service shutdown failed")
			errs = multierr.Append(errs, fmt.Errorf("shutdown %s: %w", s.name, err))
			continue
		}
		r.log.Info().Str("service", s.name).Msg("service stopped")
	}
	return errs
}

// Services lists registered names in init order.
func (r *Registry) Services() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	svcs := r.ordered()
	out := make([]string, len(svcs))
	for i, s := range svcs {
		out[i] = s.name
	}
	return out
}

// Started reports whether name has been initialized and not shut down.
func (r *Registry) Started(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.services {
		if s.name == name {
			return s.started
		}
	}
	return false
}

func call(ctx context.Context, fn Func) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return fn(ctx)
}
