// Package config reads the process configuration from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"llmperf/internal/logger"
)

const (
	DefaultHardwareConfig = "hardware.yaml"
	DefaultOrganization   = "optimum-benchmark"
	DefaultTopModels      = 10
	DefaultParallelism    = 4
	DefaultPort           = "8080"
	DefaultLauncher       = "optimum-benchmark"
	DefaultWorkDir        = "runs"
	DefaultLocalStoreDir  = "artifacts"
)

// Artifact store kinds.
const (
	StoreHub   = "hub"
	StoreGCS   = "gcs"
	StoreLocal = "local"
)

// Config holds every environment driven setting.
type Config struct {
	HardwareConfig  string   `json:"hardware_config"`
	Subset          string   `json:"subset,omitempty"`
	Machine         string   `json:"machine,omitempty"`
	HubToken        string   `json:"-"`
	HubEndpoint     string   `json:"hub_endpoint,omitempty"`
	DatasetsServer  string   `json:"datasets_server,omitempty"`
	Organization    string   `json:"organization"`
	LeaderboardRepo string   `json:"leaderboard_repo"`
	ArtifactStore   string   `json:"artifact_store"`
	GCSBucket       string   `json:"gcs_bucket,omitempty"`
	GCSCredentials  string   `json:"-"`
	LocalStoreDir   string   `json:"local_store_dir,omitempty"`
	Launcher        string   `json:"launcher"`
	WorkDir         string   `json:"work_dir"`
	Debug           bool     `json:"debug"`
	Models          []string `json:"models,omitempty"`
	TopModels       int      `json:"top_models"`
	SkipExisting    bool     `json:"skip_existing"`
	GatherParallel  int      `json:"gather_parallelism"`
	ScrapeScript    string   `json:"scrape_script,omitempty"`
	Port            string   `json:"port"`
	invalidSettings []string
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is only a warning.
func LoadDotEnv(path string, log *logger.Logger) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if log != nil {
				log.Warn("⚠️ No %s file found, using process environment", path)
			}
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	if log != nil {
		log.Debug("Loaded environment from %s", path)
	}
	return nil
}

// FromEnv reads the configuration from the process environment.
func FromEnv() *Config {
	c := &Config{
		HardwareConfig: getenv("HARDWARE_CONFIG", DefaultHardwareConfig),
		Subset:         strings.TrimSpace(os.Getenv("SUBSET")),
		Machine:        strings.TrimSpace(os.Getenv("MACHINE")),
		HubToken:       firstSet("HF_TOKEN", "HUGGINGFACE_TOKEN"),
		HubEndpoint:    os.Getenv("HUB_ENDPOINT"),
		DatasetsServer: os.Getenv("DATASETS_SERVER_ENDPOINT"),
		Organization:   getenv("HUB_ORGANIZATION", DefaultOrganization),
		ArtifactStore:  strings.ToLower(getenv("ARTIFACT_STORE", StoreHub)),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		GCSCredentials: os.Getenv("GCS_CREDENTIALS"),
		LocalStoreDir:  getenv("LOCAL_STORE_DIR", DefaultLocalStoreDir),
		Launcher:       getenv("BENCHMARK_LAUNCHER", DefaultLauncher),
		WorkDir:        getenv("WORK_DIR", DefaultWorkDir),
		Models:         ParseList(os.Getenv("MODELS")),
		ScrapeScript:   os.Getenv("SCRAPE_SCRIPT"),
		Port:           getenv("PORT", DefaultPort),
	}
	c.LeaderboardRepo = getenv("LEADERBOARD_REPO", c.Organization+"/llm-perf-leaderboard")
	c.Debug = c.boolean("DEBUG_MODE")
	c.SkipExisting = c.boolean("SKIP_EXISTING")
	c.TopModels = c.integer("TOP_MODELS_N", DefaultTopModels)
	c.GatherParallel = c.integer("GATHER_PARALLELISM", DefaultParallelism)
	return c
}

// Validate returns every problem found. An empty result means the
// configuration is usable.
func (c *Config) Validate() []string {
	problems := append([]string(nil), c.invalidSettings...)

	if c.HardwareConfig == "" {
		problems = append(problems, "HARDWARE_CONFIG must not be empty")
	}
	if c.Organization == "" {
		problems = append(problems, "HUB_ORGANIZATION must not be empty")
	}
	if !strings.Contains(c.LeaderboardRepo, "/") {
		problems = append(problems, fmt.Sprintf("LEADERBOARD_REPO %q must be of the form org/name", c.LeaderboardRepo))
	}
	switch c.ArtifactStore {
	case StoreHub:
	case StoreGCS:
		if c.GCSBucket == "" {
			problems = append(problems, "GCS_BUCKET is required for the gcs artifact store")
		}
	case StoreLocal:
		if c.LocalStoreDir == "" {
			problems = append(problems, "LOCAL_STORE_DIR is required for the local artifact store")
		}
	default:
		problems = append(problems, fmt.Sprintf("ARTIFACT_STORE %q is not one of hub, gcs, local", c.ArtifactStore))
	}
	for _, e := range [][2]string{{"HUB_ENDPOINT", c.HubEndpoint}, {"DATASETS_SERVER_ENDPOINT", c.DatasetsServer}} {
		if e[1] == "" {
			continue
		}
		if u, err := url.Parse(e[1]); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("%s %q is not an absolute URL", e[0], e[1]))
		}
	}
	if c.TopModels <= 0 {
		problems = append(problems, "TOP_MODELS_N must be positive")
	}
	if c.GatherParallel <= 0 {
		problems = append(problems, "GATHER_PARALLELISM must be positive")
	}
	if c.Launcher == "" {
		problems = append(problems, "BENCHMARK_LAUNCHER must not be empty")
	}
	return problems
}

// ValidateForUpload is Validate plus the credentials needed to write to the
// hub.
func (c *Config) ValidateForUpload() []string {
	problems := c.Validate()
	if c.ArtifactStore == StoreHub && c.HubToken == "" {
		problems = append(problems, "HF_TOKEN is required to upload to the hub artifact store")
	}
	return problems
}

// ParseList splits a comma separated value, dropping blanks.
func ParseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstSet(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) boolean(key string) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.invalidSettings = append(c.invalidSettings, fmt.Sprintf("%s %q is not a boolean", key, raw))
		return false
	}
	return v
}

func (c *Config) integer(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.invalidSettings = append(c.invalidSettings, fmt.Sprintf("%s %q is not an integer", key, raw))
		return fallback
	}
	return v
}
