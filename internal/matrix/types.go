// Package matrix expands models, weights configurations and attention
// implementations into the benchmark jobs a runner variant will execute.
package matrix

import (
	"fmt"

	"llmperf/internal/hardware"
)

// Precision is the torch dtype the weights are loaded with.
type Precision string

const (
	Float32  Precision = "float32"
	Float16  Precision = "float16"
	BFloat16 Precision = "bfloat16"
)

// QuantScheme names a quantization backend. The empty scheme means none.
type QuantScheme string

const (
	NoQuant QuantScheme = ""
	BnB     QuantScheme = "bnb"
	GPTQ    QuantScheme = "gptq"
	AWQ     QuantScheme = "awq"
)

// Subsets correspond one to one with quantization schemes.
const (
	SubsetUnquantized = "unquantized"
	SubsetBnB         = "bnb"
	SubsetGPTQ        = "gptq"
	SubsetAWQ         = "awq"
)

// Attention is an attention implementation accepted by transformers.
type Attention string

const (
	Eager           Attention = "eager"
	SDPA            Attention = "sdpa"
	FlashAttention2 Attention = "flash_attention_2"
)

// WeightsConfig describes how model weights are loaded for one benchmark.
type WeightsConfig struct {
	Name        string         `json:"name"`
	Precision   Precision      `json:"torch_dtype"`
	QuantScheme QuantScheme    `json:"quant_scheme,omitempty"`
	QuantParams map[string]any `json:"quant_config,omitempty"`
}

// Quantized reports whether a quantization scheme is applied.
func (w WeightsConfig) Quantized() bool { return w.QuantScheme != NoQuant }

// Job is one benchmark to run. Jobs are derived from the catalog, never stored.
type Job struct {
	Model     string        `json:"model"`
	Weights   WeightsConfig `json:"weights"`
	Attention Attention     `json:"attention"`
	Backend   string        `json:"backend"`
	Hardware  string        `json:"hardware"`
	Subset    string        `json:"subset"`
}

// Name is unique within a cell: {model}-{weights}-{attention}-{backend}.
func (j Job) Name() string {
	return fmt.Sprintf("%s-%s-%s-%s", j.Model, j.Weights.Name, j.Attention, j.Backend)
}

// ArtifactPath is where the job's result lives inside its namespace.
func (j Job) ArtifactPath() string {
	return j.Name() + "/benchmark.json"
}

// Experiment is the benchmark config name written into the artifact.
func (j Job) Experiment() string {
	return fmt.Sprintf("%s-%s", j.Weights.Name, j.Attention)
}

// Cell returns the namespace tuple the job uploads into.
func (j Job) Cell(machine string) hardware.Cell {
	return hardware.Cell{Backend: j.Backend, Hardware: j.Hardware, Subset: j.Subset, Machine: machine}
}

// UnknownSubsetError is returned when a builder has no weights for a subset.
type UnknownSubsetError struct {
	Subset   string
	Backend  string
	Hardware string
}

func (e *UnknownSubsetError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("unknown subset %q", e.Subset)
	}
	return fmt.Sprintf("unknown subset %q for %s-%s", e.Subset, e.Hardware, e.Backend)
}
