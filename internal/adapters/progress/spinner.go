package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// SpinnerProgress renders release progress as a spinner followed by the
// stages seen so far, e.g. "✓ upgrade (1.2s) → ● execute [2/3] ..."
type SpinnerProgress struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	out     io.Writer
	stages  []stageInfo
}

type stageInfo struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
}

// NewSpinnerProgress creates a spinner writing to stderr
func NewSpinnerProgress() *SpinnerProgress {
	return newSpinnerProgress(os.Stderr)
}

func newSpinnerProgress(out io.Writer) *SpinnerProgress {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.HideCursor = false

	return &SpinnerProgress{
		spinner: s,
		out:     out,
	}
}

// OnProgress updates the spinner with the event's stage and message
func (p *SpinnerProgress) OnProgress(_ context.Context, event usecase.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Stage != "" && (len(p.stages) == 0 || p.stages[len(p.stages)-1].Name != event.Stage) {
		now := time.Now()
		if len(p.stages) > 0 {
			p.stages[len(p.stages)-1].EndTime = now
		}
		p.stages = append(p.stages, stageInfo{Name: event.Stage, StartTime: now})
	}

	if !event.Spinner {
		if p.spinner.Active() {
			p.spinner.Stop()
		}
		return
	}

	p.spinner.Suffix = " " + p.display(event)
	if !p.spinner.Active() {
		p.spinner.Start()
	}
}

// Info prints an info message above the spinner
func (p *SpinnerProgress) Info(message string) {
	p.print(color.New(color.FgCyan), message)
}

// Error prints an error message above the spinner
func (p *SpinnerProgress) Error(message string) {
	p.print(color.New(color.FgRed), message)
}

// Stop ends the spinner. Safe to call more than once.
func (p *SpinnerProgress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner.Active() {
		p.spinner.Stop()
	}
}

func (p *SpinnerProgress) print(c *color.Color, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasActive := p.spinner.Active()
	if wasActive {
		p.spinner.Stop()
	}

	c.Fprintln(p.out, message)

	if wasActive {
		p.spinner.Start()
	}
}

// display renders completed stages with their durations, then the current one
func (p *SpinnerProgress) display(event usecase.ProgressEvent) string {
	var b strings.Builder
	for i, stage := range p.stages {
		if i > 0 {
			b.WriteString(" → ")
		}
		if stage.EndTime.IsZero() {
			fmt.Fprintf(&b, "● %s", color.New(color.FgYellow).Sprint(stage.Name))
			continue
		}
		fmt.Fprintf(&b, "✓ %s (%s)", color.New(color.FgGreen).Sprint(stage.Name),
			stage.EndTime.Sub(stage.StartTime).Round(time.Millisecond))
	}

	if event.Total > 0 && event.Current > 0 {
		fmt.Fprintf(&b, " [%d/%d]", event.Current, event.Total)
	}
	if event.Message != "" {
		b.WriteString(" " + event.Message)
	}
	return b.String()
}

var _ usecase.ProgressSink = (*SpinnerProgress)(nil)
