// Package progress renders batch completion as a single redrawn line.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"

	"github.com/cwygoda/sts/internal/domain"
)

// BarWidth is the number of cells in the bar.
const BarWidth = 50

// Reporter draws `current/total [bar] NN%` after every finished job. It is
// safe for concurrent use; rendering is serialized and reads the run
// counters under the same lock, so the drawn value never decreases.
type Reporter struct {
	mu      sync.Mutex
	out     io.Writer
	bar     *progress.Model
	shown   int
	stopped bool
}

// New creates a Reporter writing to out. A gradient bar is used when out is
// a terminal, plain ASCII otherwise.
func New(out io.Writer) *Reporter {
	r := &Reporter{out: out}
	if f, ok := out.(*os.File); ok && IsTerminal(f) {
		bar := progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(BarWidth),
			progress.WithoutPercentage(),
		)
		r.bar = &bar
	}
	return r
}

// IsTerminal reports whether f refers to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Update redraws the line from the current run counters. It does nothing
// once Stop has been called.
func (r *Reporter) Update(run *domain.BatchRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	snap := run.Snapshot()
	done := max(snap.Done(), r.shown)
	r.shown = done
	r.draw(done, snap.Total)
}

// Finish draws the completed bar and ends the line.
func (r *Reporter) Finish(run *domain.BatchRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := run.Snapshot().Total
	r.shown = total
	r.draw(total, total)
	fmt.Fprintln(r.out)
}

// Stop ends the line without forcing completion, for runs that did not
// finish. Later Update calls are dropped.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	fmt.Fprintln(r.out)
}

func (r *Reporter) draw(current, total int) {
	pct := domain.Snapshot{Total: total, Succeeded: current}.Percent()
	var bar string
	if r.bar != nil {
		bar = r.bar.ViewAs(float64(pct) / 100)
	} else {
		bar = ASCIIBar(pct, BarWidth)
	}
	fmt.Fprintf(r.out, "\r%d/%d [%s] %d%%", current, total, bar, pct)
}

// ASCIIBar returns width cells, the first pct percent of them filled with
// '='.
func ASCIIBar(pct, width int) string {
	pct = min(max(pct, 0), 100)
	filled := pct * width / 100
	return strings.Repeat("=", filled) + strings.Repeat(" ", width-filled)
}
