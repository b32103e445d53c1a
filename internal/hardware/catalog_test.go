package hardware

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleCatalog = `
- machine: 1xA10
  description: A10-24GB-150W
  hardware: cuda
  subsets:
    - unquantized
    - awq
  backends:
    - pytorch
- machine: 32vCPU-C7i
  hardware: cpu
  subsets:
    - unquantized
  backends:
    - pytorch
    - onnxruntime
`

func TestParseCatalog(t *testing.T) {
	catalog, err := Parse("inline", []byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	configs := catalog.Configs()
	if len(configs) != 2 {
		t.Fatalf("Expected 2 configs, got %d", len(configs))
	}
	if configs[0].Machine != "1xA10" || configs[0].Hardware != CUDA {
		t.Errorf("Expected first entry 1xA10/cuda, got %s/%s", configs[0].Machine, configs[0].Hardware)
	}
	if configs[0].Description != "A10-24GB-150W" {
		t.Errorf("Expected description to be kept, got %q", configs[0].Description)
	}
}

func TestCellsOrder(t *testing.T) {
	catalog, err := Parse("inline", []byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got := catalog.Cells()
	want := []Cell{
		{Backend: "pytorch", Hardware: "cuda", Subset: "unquantized", Machine: "1xA10"},
		{Backend: "pytorch", Hardware: "cuda", Subset: "awq", Machine: "1xA10"},
		{Backend: "pytorch", Hardware: "cpu", Subset: "unquantized", Machine: "32vCPU-C7i"},
		{Backend: "onnxruntime", Hardware: "cpu", Subset: "unquantized", Machine: "32vCPU-C7i"},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d cells, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Cell %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestConfigsReturnsCopy(t *testing.T) {
	catalog, _ := Parse("inline", []byte(sampleCatalog))
	configs := catalog.Configs()
	configs[0].Backends[0] = "mutated"

	if catalog.Configs()[0].Backends[0] != "pytorch" {
		t.Error("Expected catalog to be immutable through Configs()")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":           ``,
		"not a list":      `machine: x`,
		"missing machine": "- hardware: cpu\n  backends: [pytorch]\n  subsets: [unquantized]\n",
		"unknown hw":      "- machine: m\n  hardware: tpu\n  backends: [pytorch]\n  subsets: [unquantized]\n",
		"no backends":     "- machine: m\n  hardware: cpu\n  backends: []\n  subsets: [unquantized]\n",
		"no subsets":      "- machine: m\n  hardware: cpu\n  backends: [pytorch]\n",
		"duplicate":       "- machine: m\n  hardware: cpu\n  backends: [pytorch, pytorch]\n  subsets: [unquantized]\n",
	}
	for name, doc := range cases {
		_, err := Parse(name, []byte(doc))
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: expected ConfigError, got %v", name, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected wrapped ErrNotExist, got %v", err)
	}
}

func TestCellNaming(t *testing.T) {
	cell := Cell{Backend: "pytorch", Hardware: "cuda", Subset: "gptq", Machine: "1xA10"}

	if got := cell.Namespace("optimum-benchmark"); got != "optimum-benchmark/llm-perf-pytorch-cuda-gptq-1xA10" {
		t.Errorf("Unexpected namespace %s", got)
	}
	if got := cell.PerfCSVName(); got != "perf-df-pytorch-cuda-gptq-1xA10.csv" {
		t.Errorf("Unexpected csv name %s", got)
	}
	if got := cell.Namespace(""); got != "llm-perf-pytorch-cuda-gptq-1xA10" {
		t.Errorf("Unexpected bare namespace %s", got)
	}
}
