package resource

import "errors"

// modelNotFoundError is returned for operations on unregistered model ids.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for a model id missing from the registry.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// modelExistsError is returned when registering a duplicate model id.
type modelExistsError struct{ id string }

func (e modelExistsError) Error() string { return "model already registered: " + e.id }

// IsModelExists reports whether the error indicates a duplicate registration.
func IsModelExists(err error) bool {
	var e modelExistsError
	return errors.As(err, &e)
}

// modelBusyError signals a concurrent load/unload of the same model.
type modelBusyError struct{ id string }

func (e modelBusyError) Error() string { return "model busy: " + e.id }

// IsModelBusy reports whether a load or unload of the model is in progress.
func IsModelBusy(err error) bool {
	var e modelBusyError
	return errors.As(err, &e)
}

// ErrNoAccelerator is returned by accelerator queries when none is present.
var ErrNoAccelerator = errors.New("no accelerator")
