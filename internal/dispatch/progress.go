package dispatch

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const progressWidth = 50

// Progress is an Observer that renders batch headers, one line per recipient
// and a progress bar to an operator terminal, followed by a final report.
type Progress struct {
	mu sync.Mutex
	w  io.Writer
}

func NewProgress(w io.Writer) *Progress { return &Progress{w: w} }

func (p *Progress) RunStarted(info RunInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\nStarting campaign %q: %d recipients in %d batch(es)\n", info.Campaign, info.Total, info.Batches)
	fmt.Fprintf(p.w, "Estimated duration: %s\n", info.Config.EstimatedDuration(info.Total))
}

func (p *Progress) BatchStarted(index, count, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\nBatch %d/%d (%d recipients)\n", index, count, size)
}

func (p *Progress) ResultRecorded(res Result, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if res.Succeeded() {
		fmt.Fprintf(p.w, "  ✓ %s\n", res.Recipient.Label())
	} else {
		fmt.Fprintf(p.w, "  ✗ %s: %s\n", res.Recipient.Label(), res.Error)
	}
	fmt.Fprintf(p.w, "  %s\n", ProgressBar(done, total))
}

func (p *Progress) RunFinished(sum Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	WriteReport(p.w, sum)
}

// ProgressBar renders "[█████░░░░░] 50.0% (5/10)" with a fixed width bar.
func ProgressBar(done, total int) string {
	if total <= 0 {
		return fmt.Sprintf("[%s] 0.0%% (0/0)", strings.Repeat("░", progressWidth))
	}
	if done > total {
		done = total
	}
	if done < 0 {
		done = 0
	}
	filled := done * progressWidth / total
	pct := float64(done) / float64(total) * 100
	return fmt.Sprintf("[%s%s] %.1f%% (%d/%d)",
		strings.Repeat("█", filled), strings.Repeat("░", progressWidth-filled), pct, done, total)
}

// WriteReport prints the end-of-run summary including every failed recipient.
func WriteReport(w io.Writer, sum Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Campaign:     %s\n", sum.Campaign)
	fmt.Fprintf(w, "Run:          %s\n", sum.RunID)
	fmt.Fprintf(w, "Total:        %d\n", sum.Total)
	fmt.Fprintf(w, "Success:      %d\n", sum.SuccessCount)
	fmt.Fprintf(w, "Failed:       %d\n", sum.FailureCount())
	fmt.Fprintf(w, "Success rate: %.1f%%\n", sum.SuccessRate())
	fmt.Fprintf(w, "Duration:     %s\n", sum.Duration.Round(time.Millisecond))
	if len(sum.Failures) > 0 {
		fmt.Fprintln(w, "\nFailed recipients:")
		for _, f := range sum.Failures {
			label := f.Destination
			if f.Name != "" {
				label = f.Name + " <" + f.Destination + ">"
			}
			fmt.Fprintf(w, "  - %s: %s\n", label, f.Error)
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 50))
}
