package runners

import (
	"fmt"
	"sort"
	"strings"

	"llmperf/internal/hardware"
	"llmperf/internal/matrix"
)

// Variant is one supported (hardware, backend) pair. The set is closed and
// selected by Lookup.
type Variant struct {
	hardware   string
	backend    string
	device     string
	subsets    []string
	// nil keeps every precision of the subset
	precisions []matrix.Precision
	attention  []matrix.Attention
	// float32 weights cannot use flash attention
	noFlashFP bool
	section   func(v *Variant, job matrix.Job) map[string]any
}

var variantTable = map[string]*Variant{
	"cpu-pytorch": {
		hardware:  hardware.CPU,
		backend:   "pytorch",
		device:    "cpu",
		subsets:   []string{matrix.SubsetUnquantized},
		attention: []matrix.Attention{matrix.Eager, matrix.SDPA, matrix.FlashAttention2},
		noFlashFP: true,
		section:   pytorchSection,
	},
	"cpu-onnxruntime": {
		hardware:   hardware.CPU,
		backend:    "onnxruntime",
		device:     "cpu",
		subsets:    []string{matrix.SubsetUnquantized},
		precisions: []matrix.Precision{matrix.Float32},
		attention:  []matrix.Attention{matrix.Eager, matrix.SDPA},
		section:    onnxruntimeSection,
	},
	"cpu-openvino": {
		hardware:   hardware.CPU,
		backend:    "openvino",
		device:     "cpu",
		subsets:    []string{matrix.SubsetUnquantized},
		precisions: []matrix.Precision{matrix.Float32, matrix.Float16},
		attention:  []matrix.Attention{matrix.Eager, matrix.SDPA},
		section:    openvinoSection,
	},
	"cuda-pytorch": {
		hardware:  hardware.CUDA,
		backend:   "pytorch",
		device:    "cuda",
		subsets:   []string{matrix.SubsetUnquantized, matrix.SubsetBnB, matrix.SubsetGPTQ, matrix.SubsetAWQ},
		attention: []matrix.Attention{matrix.Eager, matrix.SDPA, matrix.FlashAttention2},
		noFlashFP: true,
		section:   pytorchSection,
	},
	"rocm-pytorch": {
		hardware:  hardware.ROCm,
		backend:   "pytorch",
		device:    "cuda", // ROCm builds of torch expose HIP devices as cuda
		subsets:   []string{matrix.SubsetUnquantized, matrix.SubsetBnB, matrix.SubsetGPTQ, matrix.SubsetAWQ},
		attention: []matrix.Attention{matrix.Eager, matrix.SDPA, matrix.FlashAttention2},
		noFlashFP: true,
		section:   pytorchSection,
	},
}

// UnsupportedVariantError is returned for a (hardware, backend) pair with no runner.
type UnsupportedVariantError struct {
	Hardware string
	Backend  string
}

func (e *UnsupportedVariantError) Error() string {
	names := make([]string, 0, len(variantTable))
	for _, v := range Variants() {
		names = append(names, v.Name())
	}
	return fmt.Sprintf("%s is not supported for the %s backend (available: %s)", e.Hardware, e.Backend, strings.Join(names, ", "))
}

// Lookup returns the variant for a hardware and backend.
func Lookup(hw, backend string) (*Variant, error) {
	v, ok := variantTable[hw+"-"+backend]
	if !ok {
		return nil, &UnsupportedVariantError{Hardware: hw, Backend: backend}
	}
	return v, nil
}

// Variants lists every variant sorted by name.
func Variants() []*Variant {
	names := make([]string, 0, len(variantTable))
	for name := range variantTable {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Variant, len(names))
	for i, name := range names {
		out[i] = variantTable[name]
	}
	return out
}

// Name is "{hardware}-{backend}".
func (v *Variant) Name() string { return v.hardware + "-" + v.backend }

func (v *Variant) Backend() string  { return v.backend }
func (v *Variant) Hardware() string { return v.hardware }
func (v *Variant) Device() string   { return v.device }

// Subsets returns the subsets this variant can benchmark.
func (v *Variant) Subsets() []string { return append([]string(nil), v.subsets...) }

// WeightsConfigs implements matrix.Builder.
func (v *Variant) WeightsConfigs(subset string) ([]matrix.WeightsConfig, error) {
	supported := false
	for _, s := range v.subsets {
		if s == subset {
			supported = true
			break
		}
	}
	if !supported {
		return nil, &matrix.UnknownSubsetError{Subset: subset, Backend: v.backend, Hardware: v.hardware}
	}
	all, err := matrix.StandardWeights(subset)
	if err != nil {
		return nil, err
	}
	if v.precisions == nil {
		return all, nil
	}
	var out []matrix.WeightsConfig
	for _, w := range all {
		for _, p := range v.precisions {
			if w.Precision == p {
				out = append(out, w)
				break
			}
		}
	}
	return out, nil
}

// AttentionVariants implements matrix.Builder.
func (v *Variant) AttentionVariants() []matrix.Attention {
	return append([]matrix.Attention(nil), v.attention...)
}

// Supported implements matrix.Builder.
func (v *Variant) Supported(w matrix.WeightsConfig, a matrix.Attention) bool {
	if v.noFlashFP && a == matrix.FlashAttention2 && w.Precision == matrix.Float32 {
		return false
	}
	return true
}

// BackendSection renders the backend block of a benchmark config.
func (v *Variant) BackendSection(job matrix.Job) map[string]any {
	return v.section(v, job)
}

func commonSection(v *Variant, job matrix.Job) map[string]any {
	return map[string]any{
		"name":         v.backend,
		"model":        job.Model,
		"device":       v.device,
		"no_weights":   true,
		"library":      "transformers",
		"task":         "text-generation",
		"model_kwargs": map[string]any{"trust_remote_code": true},
	}
}

func pytorchSection(v *Variant, job matrix.Job) map[string]any {
	s := commonSection(v, job)
	s["torch_dtype"] = string(job.Weights.Precision)
	s["attn_implementation"] = string(job.Attention)
	if job.Weights.Quantized() {
		s["quantization_scheme"] = string(job.Weights.QuantScheme)
	} else {
		s["quantization_scheme"] = nil
	}
	qc := map[string]any{}
	for k, val := range job.Weights.QuantParams {
		qc[k] = val
	}
	s["quantization_config"] = qc
	return s
}

func onnxruntimeSection(v *Variant, job matrix.Job) map[string]any {
	s := commonSection(v, job)
	s["torch_dtype"] = string(job.Weights.Precision)
	return s
}

func openvinoSection(v *Variant, job matrix.Job) map[string]any {
	s := commonSection(v, job)
	s["half"] = job.Weights.Precision == matrix.Float16
	return s
}
