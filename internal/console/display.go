// Package console renders tracker state on the terminal and asks the
// operator for input when one is present.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/shaunagostinho/geotrack/internal/tracker"
)

// Display prints status changes and fixes as colored lines.
type Display struct {
	mu  sync.Mutex
	out io.Writer

	inactive *color.Color
	active   *color.Color
	failed   *color.Color
	label    *color.Color
}

// NewDisplay creates a Display writing to out.
func NewDisplay(out io.Writer) *Display {
	return &Display{
		out:      out,
		inactive: color.New(color.FgWhite),
		active:   color.New(color.FgGreen, color.Bold),
		failed:   color.New(color.FgRed, color.Bold),
		label:    color.New(color.FgCyan),
	}
}

func (d *Display) ShowStatus(s tracker.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.inactive
	switch s.Category {
	case tracker.CategoryActive:
		c = d.active
	case tracker.CategoryError:
		c = d.failed
	}
	_, _ = c.Fprintf(d.out, "[%s] %s\n", s.Category, s.Message)
}

func (d *Display) ShowFix(r tracker.Reading) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, _ = d.label.Fprint(d.out, "position ")
	_, _ = fmt.Fprintf(d.out, "lat %s  lon %s  accuracy %sm  at %s\n",
		r.Latitude, r.Longitude, r.Accuracy, r.Time)
}

// ShowControls is a no-op: the terminal has no start or stop buttons.
func (d *Display) ShowControls(tracker.Controls) {}
