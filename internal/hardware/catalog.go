// Package hardware loads the static catalog of machines that should be
// benchmarked and enumerates the remote artifact cells they imply.
package hardware

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v4"
)

// Hardware kinds understood by the runners.
const (
	CPU      = "cpu"
	CUDA     = "cuda"
	ROCm     = "rocm"
	OpenVINO = "openvino"
)

var knownHardware = map[string]bool{CPU: true, CUDA: true, ROCm: true, OpenVINO: true}

// Config is one catalog entry: a machine and what should run on it.
type Config struct {
	Machine     string   `yaml:"machine" json:"machine"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Hardware    string   `yaml:"hardware" json:"hardware"`
	Backends    []string `yaml:"backends" json:"backends"`
	Subsets     []string `yaml:"subsets" json:"subsets"`
}

// ConfigError reports a malformed hardware catalog. It is fatal for the run.
type ConfigError struct {
	Source string
	Index  int // -1 when the error is not tied to an entry
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("hardware catalog %s", e.Source)
	if e.Index >= 0 {
		msg += fmt.Sprintf(" entry %d", e.Index)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Catalog is the ordered, immutable set of hardware configs for one process.
type Catalog struct {
	configs []Config
}

// Load reads and validates a YAML catalog from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Index: -1, Reason: "cannot read file", Err: err}
	}
	return Parse(path, data)
}

// Parse validates a YAML catalog. The document is a sequence of entries.
func Parse(source string, data []byte) (*Catalog, error) {
	var configs []Config
	if err := yaml.Unmarshal(data, &configs); err != nil {
		return nil, &ConfigError{Source: source, Index: -1, Reason: "invalid yaml", Err: err}
	}
	if len(configs) == 0 {
		return nil, &ConfigError{Source: source, Index: -1, Reason: "no hardware entries"}
	}
	for i := range configs {
		if err := validate(&configs[i]); err != nil {
			return nil, &ConfigError{Source: source, Index: i, Reason: err.Error()}
		}
	}
	return &Catalog{configs: configs}, nil
}

func validate(c *Config) error {
	c.Machine = strings.TrimSpace(c.Machine)
	c.Hardware = strings.ToLower(strings.TrimSpace(c.Hardware))
	if c.Machine == "" {
		return fmt.Errorf("missing machine")
	}
	if c.Hardware == "" {
		return fmt.Errorf("missing hardware for machine %s", c.Machine)
	}
	if !knownHardware[c.Hardware] {
		return fmt.Errorf("unknown hardware %q for machine %s", c.Hardware, c.Machine)
	}
	if err := checkSet("backends", c.Backends); err != nil {
		return fmt.Errorf("machine %s: %w", c.Machine, err)
	}
	if err := checkSet("subsets", c.Subsets); err != nil {
		return fmt.Errorf("machine %s: %w", c.Machine, err)
	}
	return nil
}

func checkSet(field string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("empty %s", field)
	}
	seen := make(map[string]bool, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			return fmt.Errorf("blank entry in %s", field)
		}
		if seen[v] {
			return fmt.Errorf("duplicate %q in %s", v, field)
		}
		seen[v] = true
		values[i] = v
	}
	return nil
}

// Configs returns a copy of the entries in file order.
func (c *Catalog) Configs() []Config {
	out := make([]Config, len(c.configs))
	for i, cfg := range c.configs {
		cfg.Backends = append([]string(nil), cfg.Backends...)
		cfg.Subsets = append([]string(nil), cfg.Subsets...)
		out[i] = cfg
	}
	return out
}

// Cells enumerates every (backend, hardware, subset, machine) namespace the
// catalog implies, entry by entry, subset-major.
func (c *Catalog) Cells() []Cell {
	var cells []Cell
	for _, cfg := range c.configs {
		for _, subset := range cfg.Subsets {
			for _, backend := range cfg.Backends {
				cells = append(cells, Cell{
					Backend:  backend,
					Hardware: cfg.Hardware,
					Subset:   subset,
					Machine:  cfg.Machine,
				})
			}
		}
	}
	return cells
}

// Machine returns the entry for a machine name.
func (c *Catalog) Machine(name string) (Config, bool) {
	for _, cfg := range c.Configs() {
		if cfg.Machine == name {
			return cfg, true
		}
	}
	return Config{}, false
}
