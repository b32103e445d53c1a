package runners

import "encoding/json"

// Scenario constants shared by every variant.
const (
	scenarioDuration   = 10
	scenarioIterations = 10
	scenarioWarmupRuns = 10
	batchSize          = 1
	sequenceLength     = 256
	maxNewTokens       = 64
	minNewTokens       = 64
)

// BenchmarkConfig is the document handed to the benchmarking library.
type BenchmarkConfig struct {
	Name     string         `json:"name"`
	Scenario ScenarioConfig `json:"scenario"`
	Launcher LauncherConfig `json:"launcher"`
	Backend  map[string]any `json:"backend"`
}

type ScenarioConfig struct {
	Name           string         `json:"name"`
	Memory         bool           `json:"memory"`
	Latency        bool           `json:"latency"`
	Duration       int            `json:"duration"`
	Iterations     int            `json:"iterations"`
	WarmupRuns     int            `json:"warmup_runs"`
	InputShapes    map[string]int `json:"input_shapes"`
	GenerateKwargs map[string]int `json:"generate_kwargs"`
}

type LauncherConfig struct {
	Name                  string `json:"name"`
	DeviceIsolation       bool   `json:"device_isolation"`
	DeviceIsolationAction string `json:"device_isolation_action"`
}

func inferenceScenario() ScenarioConfig {
	return ScenarioConfig{
		Name:           "inference",
		Memory:         true,
		Latency:        true,
		Duration:       scenarioDuration,
		Iterations:     scenarioIterations,
		WarmupRuns:     scenarioWarmupRuns,
		InputShapes:    map[string]int{"batch_size": batchSize, "sequence_length": sequenceLength},
		GenerateKwargs: map[string]int{"max_new_tokens": maxNewTokens, "min_new_tokens": minNewTokens},
	}
}

func processLauncher() LauncherConfig {
	return LauncherConfig{Name: "process", DeviceIsolation: true, DeviceIsolationAction: "kill"}
}

// JSON encodes the config with stable key order.
func (c BenchmarkConfig) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "    ")
}
