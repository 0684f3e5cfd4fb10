package llm

import "context"

// Adapter defines the minimal interface for an LLM backend integration.
// Keep this surface small; inference runtimes plug in behind it.
type Adapter interface {
	Load(ctx context.Context, path string) error
	Unload(ctx context.Context) error
	Warmup(ctx context.Context) error
	Loaded() bool
}

// Factory builds an adapter per model.
type Factory func() Adapter

// CacheReleaser is implemented by adapters that can drop warm caches while
// keeping the model loaded.
type CacheReleaser interface {
	ReleaseCache(ctx context.Context) error
}
