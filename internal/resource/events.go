package resource

// Event represents a resource manager lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// Event names published by the Manager.
const (
	EventModelLoaded           = "model_loaded"
	EventModelUnloaded         = "model_unloaded"
	EventModelUnloadFailed     = "model_unload_failed"
	EventRemediation           = "remediation"
	EventCleanupCallbackFailed = "cleanup_callback_failed"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
