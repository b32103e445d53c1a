package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"llmperf/internal/matrix"
	"llmperf/internal/results"
	"llmperf/internal/runners"
)

// progressObserver renders matrix progress as a bar on w.
type progressObserver struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{w: w}
}

func (p *progressObserver) JobStarted(job matrix.Job, index, total int) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("jobs"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	p.bar.Describe(fmt.Sprintf("%s %s", job.Model, job.Experiment()))
}

func (p *progressObserver) JobFinished(outcome runners.Outcome, index, total int) {
	if p.bar == nil {
		return
	}
	p.bar.Add(1)
	if outcome.Status == results.StatusFailed {
		p.bar.Describe(fmt.Sprintf("⛔️ %s", outcome.Job.Name()))
	}
	if index == total-1 {
		p.finish()
	}
}

func (p *progressObserver) finish() {
	if p.bar == nil {
		return
	}
	p.bar.Finish()
	fmt.Fprintln(p.w)
	p.bar.Close()
}
