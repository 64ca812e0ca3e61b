package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// BarRenderer reports the stages of one action. On a terminal it redraws a
// single status line in place; elsewhere it prints one line per event.
type BarRenderer struct {
	out   io.Writer
	start time.Time
	tty   bool
	meter bar.Model
	last  Event
	drawn bool
}

// NewBarRenderer creates a renderer that writes to out, sized to the
// terminal when out is one.
func NewBarRenderer(out *os.File) *BarRenderer {
	tty := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())

	width := 80
	if tty {
		if w, _, err := term.GetSize(out.Fd()); err == nil && w > 0 {
			width = w
		}
	}
	return newBarRenderer(out, tty, width)
}

func newBarRenderer(out io.Writer, tty bool, width int) *BarRenderer {
	return &BarRenderer{
		out:   out,
		start: time.Now(),
		tty:   tty,
		meter: bar.New(bar.WithDefaultGradient(), bar.WithWidth(barWidth(width))),
	}
}

// Handle satisfies Callback.
func (r *BarRenderer) Handle(e Event) {
	e.Elapsed = time.Since(r.start)
	if e.Stage == StageComplete {
		e.Percent = 1
	}
	r.last = e

	if !r.tty {
		fmt.Fprintf(r.out, "[%s] %s\n", FormatElapsed(e.Elapsed), e.Message)
		return
	}
	fmt.Fprintf(r.out, "\r\033[2K  %s  %s  %s", r.meter.ViewAs(e.Percent), e.Message, FormatElapsed(e.Elapsed))
	r.drawn = true
}

// Finish clears the status line and prints a summary of a completed action.
// Errors are left to the caller.
func (r *BarRenderer) Finish() {
	if r.drawn {
		fmt.Fprint(r.out, "\r\033[2K")
		r.drawn = false
	}

	e := r.last
	if e.Error != nil {
		fmt.Fprintf(r.out, "\n  Failed while in stage %q\n", e.Stage)
		return
	}
	if e.Stage != StageComplete {
		return
	}

	source := "synthesized"
	if e.Cached {
		source = "cached"
	}
	switch {
	case e.OutputFile != "":
		fmt.Fprintf(r.out, "\n  Audio saved to %s (%s, %.1f KB, %s)\n", e.OutputFile, e.Duration, e.SizeKB, source)
	case e.Duration != "":
		fmt.Fprintf(r.out, "\n  %s (%s, %s)\n", e.Message, e.Duration, source)
	default:
		fmt.Fprintf(r.out, "\n  %s\n", e.Message)
	}
	fmt.Fprintf(r.out, "  Total: %s\n", FormatElapsed(e.Elapsed))
}

// barWidth leaves room for the message and elapsed time beside the bar.
func barWidth(termWidth int) int {
	return min(max(termWidth/2, 20), 50)
}

// FormatElapsed formats a duration as M:SS.
func FormatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
