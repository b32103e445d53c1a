package leaderboard

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultScrapeScript clones and runs the open LLM leaderboard scraper.
const DefaultScrapeScript = `git clone https://github.com/Weyaxi/scrape-open-llm-leaderboard.git
pip install -r scrape-open-llm-leaderboard/requirements.txt -q
python scrape-open-llm-leaderboard/main.py
rm -rf scrape-open-llm-leaderboard
`

// ScrapeOutput is the file the scraper leaves in its working directory.
const ScrapeOutput = "open-llm-leaderboard.csv"

// Scraper produces the LLM leaderboard CSV.
type Scraper interface {
	Scrape(ctx context.Context) ([]byte, error)
}

// ScriptScraper runs a shell script and reads its CSV output.
type ScriptScraper struct {
	Script string
	Dir    string
	Output string
	Stdout io.Writer
	Stderr io.Writer
}

// Scrape runs the script in Dir. A non zero exit is reported only when the
// output file is also missing, matching scripts that warn but still write.
func (s *ScriptScraper) Scrape(ctx context.Context) ([]byte, error) {
	script := s.Script
	if script == "" {
		script = DefaultScrapeScript
	}
	output := s.Output
	if output == "" {
		output = ScrapeOutput
	}

	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scrape directory: %w", err)
		}
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Dir = s.Dir
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	path := output
	if !filepath.IsAbs(path) && s.Dir != "" {
		path = filepath.Join(s.Dir, output)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("scrape script failed: %w", runErr)
		}
		return nil, fmt.Errorf("scrape output %s: %w", output, err)
	}
	return data, nil
}
