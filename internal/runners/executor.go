package runners

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"llmperf/internal/logger"
	"llmperf/internal/matrix"
)

const (
	ConfigFileName   = "benchmark_config.json"
	ArtifactFileName = "benchmark.json"

	stderrTailBytes = 16 * 1024
	pipeWaitDelay   = 10 * time.Second
)

// Request is everything an executor needs to run one job.
type Request struct {
	Job    matrix.Job
	Config BenchmarkConfig
}

// Executor runs one benchmark and returns the raw artifact it produced.
type Executor interface {
	Run(ctx context.Context, req Request) ([]byte, error)
}

// ExecutionError is a failed benchmark. Killed is set when the child was
// terminated by a signal (device isolation, cancellation); such failures are
// terminal and not retried.
type ExecutionError struct {
	Job      string
	ExitCode int
	Killed   bool
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	switch {
	case e.Killed:
		return fmt.Sprintf("benchmark %s was killed: %v", e.Job, e.Err)
	case e.ExitCode > 0:
		return fmt.Sprintf("benchmark %s exited with code %d", e.Job, e.ExitCode)
	default:
		return fmt.Sprintf("benchmark %s failed: %v", e.Job, e.Err)
	}
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Traceback is the text recorded in the failed artifact.
func (e *ExecutionError) Traceback() string {
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		return e.Error() + "\n" + tail
	}
	return e.Error()
}

// ProcessExecutor launches the benchmark as a child process in its own
// process group. The launcher is invoked as
//
//	<command...> --config <dir>/benchmark_config.json --output <dir>
//
// and must leave <dir>/benchmark.json behind.
type ProcessExecutor struct {
	Command []string
	WorkDir string
	Env     []string
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *logger.Logger
}

// JobDir is where a job's config and artifact live.
func (p *ProcessExecutor) JobDir(job matrix.Job) string {
	return filepath.Join(p.WorkDir, filepath.FromSlash(job.Name()))
}

func (p *ProcessExecutor) Run(ctx context.Context, req Request) ([]byte, error) {
	name := req.Job.Name()
	if len(p.Command) == 0 {
		return nil, &ExecutionError{Job: name, Err: errors.New("no launcher command configured")}
	}

	dir, err := filepath.Abs(p.JobDir(req.Job))
	if err != nil {
		return nil, &ExecutionError{Job: name, Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &ExecutionError{Job: name, Err: fmt.Errorf("failed to create job directory: %w", err)}
	}
	cfg, err := req.Config.JSON()
	if err != nil {
		return nil, &ExecutionError{Job: name, Err: fmt.Errorf("failed to encode config: %w", err)}
	}
	cfgPath := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(cfgPath, cfg, 0o644); err != nil {
		return nil, &ExecutionError{Job: name, Err: fmt.Errorf("failed to write config: %w", err)}
	}
	artifactPath := filepath.Join(dir, ArtifactFileName)
	os.Remove(artifactPath)

	args := append(append([]string(nil), p.Command[1:]...), "--config", cfgPath, "--output", dir)
	cmd := exec.CommandContext(ctx, p.Command[0], args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), p.Env...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = pipeWaitDelay

	tail := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = tail
	if p.Stderr != nil {
		cmd.Stderr = io.MultiWriter(p.Stderr, tail)
	}
	if p.Stdout != nil {
		cmd.Stdout = p.Stdout
	}

	if p.Logger != nil {
		p.Logger.Debug("🚀 Launching %s %s", p.Command[0], strings.Join(args, " "))
	}
	if err := cmd.Run(); err != nil {
		execErr := &ExecutionError{Job: name, ExitCode: -1, Stderr: tail.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
			execErr.Killed = exitErr.ExitCode() == -1
		}
		if ctx.Err() != nil {
			execErr.Killed = true
			execErr.Err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return nil, execErr
	}

	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, &ExecutionError{Job: name, Stderr: tail.String(), Err: fmt.Errorf("no artifact produced: %w", err)}
	}
	return data, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
