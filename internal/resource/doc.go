// Package resource watches host pressure and keeps registered models within
// it.
//
// A Monitor samples CPU, memory, disk and accelerator memory and classifies
// each against a Threshold. A Manager owns the model registry and, on every
// tick of its background loop, applies one remediation tier for the worse of
// memory and GPU memory pressure, then unloads idle models and trims the
// logical cache counter.
//
// Samplers are pluggable: the default reads /proc via procfs, the default
// accelerator shells out to nvidia-smi when present.
package resource
