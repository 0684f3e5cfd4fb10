package types

// Model represents a discoverable or loadable LLM model on disk.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4_k_m.gguf
	ID string `json:"id" example:"tinyllama-q4_k_m.gguf"`
	// Human-friendly name.
	// example: tinyllama
	Name string `json:"name" example:"tinyllama"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/tinyllama-q4_k_m.gguf
	Path string `json:"path" example:"/home/user/models/tinyllama-q4_k_m.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant" example:"Q4_K_M"`
	// Optional family (e.g., llama, mistral, phi).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
	// File size in MB, used as the memory estimate.
	// example: 638
	SizeMB int64 `json:"size_mb" example:"638"`
}
