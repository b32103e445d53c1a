// Package models decides which models a benchmark run covers. The catalog is
// built once by the entry point and passed down explicitly.
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"llmperf/internal/logger"
)

// TopModelsDataset holds the ranked text generation models.
const TopModelsDataset = "optimum-benchmark/top-text-generation-models"

// Source records how a catalog was obtained.
type Source string

const (
	SourceDebug    Source = "debug"
	SourceExplicit Source = "explicit"
	SourceDataset  Source = "dataset"
	SourceFallback Source = "fallback"
)

// DebugModels is used in debug mode.
var DebugModels = []string{"gpt2"}

// FallbackModels is used when the ranked dataset cannot be read.
var FallbackModels = []string{
	"meta-llama/Llama-3.1-8B-Instruct",
	"Qwen/Qwen2.5-7B-Instruct",
	"mistralai/Mistral-7B-Instruct-v0.3",
	"google/gemma-2-9b-it",
	"microsoft/Phi-3-mini-4k-instruct",
}

// Catalog is the ordered list of models to benchmark.
type Catalog struct {
	Models []string `json:"models" yaml:"models"`
	Source Source   `json:"source" yaml:"source"`
}

// RowSource reads dataset rows. *api.Client satisfies it.
type RowSource interface {
	DatasetRows(ctx context.Context, dataset string, pageSize int) ([]map[string]any, error)
}

// Options drives Load.
type Options struct {
	Debug    bool
	Explicit []string
	TopN     int
	Rows     RowSource
	Logger   *logger.Logger
}

// Load resolves the catalog: debug mode, then an explicit list, then the
// top N of the ranked dataset, then the fallback list.
func Load(ctx context.Context, opts Options) Catalog {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	if opts.Debug {
		return Catalog{Models: append([]string(nil), DebugModels...), Source: SourceDebug}
	}
	if len(opts.Explicit) > 0 {
		return Catalog{Models: append([]string(nil), opts.Explicit...), Source: SourceExplicit}
	}

	n := opts.TopN
	if n <= 0 {
		n = 10
	}
	if opts.Rows != nil {
		top, err := TopFromDataset(ctx, opts.Rows, n)
		if err == nil && len(top) > 0 {
			log.Info("📋 Benchmarking the following %d models: %v", len(top), top)
			return Catalog{Models: top, Source: SourceDataset}
		}
		if err == nil {
			err = fmt.Errorf("dataset %s is empty", TopModelsDataset)
		}
		log.Error("❌ Error fetching top LLM list: %v", err)
	}

	fallback := FallbackModels
	if len(fallback) > n {
		fallback = fallback[:n]
	}
	return Catalog{Models: append([]string(nil), fallback...), Source: SourceFallback}
}

// TopFromDataset returns the n most downloaded "organization/model_name" ids.
func TopFromDataset(ctx context.Context, rows RowSource, n int) ([]string, error) {
	data, err := rows.DatasetRows(ctx, TopModelsDataset, 100)
	if err != nil {
		return nil, err
	}
	entries := make([]TopModel, 0, len(data))
	for _, r := range data {
		entries = append(entries, TopModel{
			Organization: fmt.Sprint(r["organization"]),
			ModelName:    fmt.Sprint(r["model_name"]),
			Downloads:    toInt(r["downloads"]),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Downloads > entries[j].Downloads })
	if len(entries) > n {
		entries = entries[:n]
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID()
	}
	return ids, nil
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i
	}
	return 0
}
