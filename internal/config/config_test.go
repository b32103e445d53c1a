package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"llmperf/internal/logger"
)

var managedKeys = []string{
	"HARDWARE_CONFIG", "SUBSET", "MACHINE", "HF_TOKEN", "HUGGINGFACE_TOKEN", "HUB_ENDPOINT",
	"DATASETS_SERVER_ENDPOINT", "HUB_ORGANIZATION", "LEADERBOARD_REPO", "ARTIFACT_STORE", "GCS_BUCKET",
	"GCS_CREDENTIALS", "LOCAL_STORE_DIR", "BENCHMARK_LAUNCHER", "WORK_DIR", "DEBUG_MODE", "MODELS",
	"TOP_MODELS_N", "SKIP_EXISTING", "GATHER_PARALLELISM", "SCRAPE_SCRIPT", "PORT", "LLMPERF_DOTENV_PROBE",
}

// withEnv clears every managed key, applies values and restores the
// original environment when the test ends.
func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	original := make(map[string]*string, len(managedKeys))
	for _, key := range managedKeys {
		if v, ok := os.LookupEnv(key); ok {
			v := v
			original[key] = &v
		} else {
			original[key] = nil
		}
		os.Unsetenv(key)
	}
	t.Cleanup(func() {
		for key, value := range original {
			if value != nil {
				os.Setenv(key, *value)
			} else {
				os.Unsetenv(key)
			}
		}
	})
	for key, value := range values {
		os.Setenv(key, value)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	withEnv(t, nil)

	c := FromEnv()
	if c.HardwareConfig != "hardware.yaml" {
		t.Errorf("Expected default hardware config, got '%s'", c.HardwareConfig)
	}
	if c.Organization != "optimum-benchmark" {
		t.Errorf("Expected default organization, got '%s'", c.Organization)
	}
	if c.LeaderboardRepo != "optimum-benchmark/llm-perf-leaderboard" {
		t.Errorf("Expected default leaderboard repo, got '%s'", c.LeaderboardRepo)
	}
	if c.ArtifactStore != StoreHub {
		t.Errorf("Expected hub store, got '%s'", c.ArtifactStore)
	}
	if c.TopModels != 10 || c.GatherParallel != 4 {
		t.Errorf("Expected 10 top models and parallelism 4, got %d and %d", c.TopModels, c.GatherParallel)
	}
	if c.Debug || c.SkipExisting {
		t.Error("Expected debug and skip-existing to default to false")
	}
	if c.Models != nil {
		t.Errorf("Expected no explicit models, got %v", c.Models)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"HUGGINGFACE_TOKEN":  "hf_alt",
		"HUB_ORGANIZATION":   "my-org",
		"ARTIFACT_STORE":     "LOCAL",
		"DEBUG_MODE":         "true",
		"MODELS":             " gpt2, ,Qwen/Qwen2.5-7B ",
		"TOP_MODELS_N":       "3",
		"GATHER_PARALLELISM": "8",
		"SUBSET":             " bnb ",
	})

	c := FromEnv()
	if c.HubToken != "hf_alt" {
		t.Errorf("Expected HUGGINGFACE_TOKEN fallback, got '%s'", c.HubToken)
	}
	if c.LeaderboardRepo != "my-org/llm-perf-leaderboard" {
		t.Errorf("Expected leaderboard repo to follow organization, got '%s'", c.LeaderboardRepo)
	}
	if c.ArtifactStore != StoreLocal {
		t.Errorf("Expected store kind to be lowercased, got '%s'", c.ArtifactStore)
	}
	if !c.Debug {
		t.Error("Expected debug mode")
	}
	if !reflect.DeepEqual(c.Models, []string{"gpt2", "Qwen/Qwen2.5-7B"}) {
		t.Errorf("Expected trimmed model list, got %v", c.Models)
	}
	if c.TopModels != 3 || c.GatherParallel != 8 {
		t.Errorf("Expected 3 and 8, got %d and %d", c.TopModels, c.GatherParallel)
	}
	if c.Subset != "bnb" {
		t.Errorf("Expected trimmed subset, got '%s'", c.Subset)
	}
	if problems := c.Validate(); len(problems) != 0 {
		t.Errorf("Expected valid configuration, got %v", problems)
	}
}

func TestHFTokenTakesPrecedence(t *testing.T) {
	withEnv(t, map[string]string{"HF_TOKEN": "hf_main", "HUGGINGFACE_TOKEN": "hf_alt"})

	if c := FromEnv(); c.HubToken != "hf_main" {
		t.Errorf("Expected HF_TOKEN, got '%s'", c.HubToken)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	withEnv(t, map[string]string{
		"ARTIFACT_STORE":     "s3",
		"DEBUG_MODE":         "maybe",
		"TOP_MODELS_N":       "ten",
		"GATHER_PARALLELISM": "0",
		"HUB_ENDPOINT":       "not a url",
		"LEADERBOARD_REPO":   "flat",
	})

	problems := FromEnv().Validate()
	joined := strings.Join(problems, "\n")
	for _, want := range []string{"DEBUG_MODE", "TOP_MODELS_N", "GATHER_PARALLELISM", "ARTIFACT_STORE", "HUB_ENDPOINT", "LEADERBOARD_REPO"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected a problem mentioning %s, got:\n%s", want, joined)
		}
	}
}

func TestValidateStoreRequirements(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		valid bool
	}{
		{"hub without token", map[string]string{}, false},
		{"hub with token", map[string]string{"HF_TOKEN": "x"}, true},
		{"gcs without bucket", map[string]string{"ARTIFACT_STORE": "gcs"}, false},
		{"gcs with bucket", map[string]string{"ARTIFACT_STORE": "gcs", "GCS_BUCKET": "b"}, true},
		{"local", map[string]string{"ARTIFACT_STORE": "local"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.env)
			problems := FromEnv().ValidateForUpload()
			if tt.valid && len(problems) != 0 {
				t.Errorf("Expected no problems, got %v", problems)
			}
			if !tt.valid && len(problems) == 0 {
				t.Error("Expected a problem")
			}
		})
	}
}

func TestReadOnlyHubNeedsNoToken(t *testing.T) {
	withEnv(t, nil)

	if problems := FromEnv().Validate(); len(problems) != 0 {
		t.Errorf("Expected anonymous hub reads to be valid, got %v", problems)
	}
}

func TestLoadDotEnv(t *testing.T) {
	withEnv(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LLMPERF_DOTENV_PROBE=loaded\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(path, nil); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := os.Getenv("LLMPERF_DOTENV_PROBE"); got != "loaded" {
		t.Errorf("Expected variable from .env, got '%s'", got)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	withEnv(t, map[string]string{"LLMPERF_DOTENV_PROBE": "process"})
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LLMPERF_DOTENV_PROBE=file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(path, nil); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := os.Getenv("LLMPERF_DOTENV_PROBE"); got != "process" {
		t.Errorf("Expected process value to win, got '%s'", got)
	}
}

func TestLoadDotEnvMissingFileWarns(t *testing.T) {
	var stdout bytes.Buffer
	log := logger.New(logger.Options{Stdout: &stdout, Stderr: &bytes.Buffer{}})

	err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), log)
	if err != nil {
		t.Fatalf("Expected missing file to be tolerated, got: %v", err)
	}
	if !strings.Contains(stdout.String(), "[WARN]") {
		t.Errorf("Expected a warning, got %q", stdout.String())
	}
}
