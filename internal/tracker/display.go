package tracker

import (
	"math"
	"strconv"

	"github.com/shaunagostinho/geotrack/internal/gps"
)

// Controls holds the enabled state of the start and stop actions.
type Controls struct {
	StartEnabled bool `json:"startEnabled"`
	StopEnabled  bool `json:"stopEnabled"`
}

// Reading is a fix formatted for display.
type Reading struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Accuracy  string `json:"accuracy"`
	Time      string `json:"time"`
}

// FormatFix renders fix for the position panel.
func FormatFix(fix gps.Fix) Reading {
	return Reading{
		Latitude:  strconv.FormatFloat(fix.Latitude, 'f', 6, 64),
		Longitude: strconv.FormatFloat(fix.Longitude, 'f', 6, 64),
		Accuracy:  strconv.FormatFloat(math.Round(fix.Accuracy), 'f', 0, 64),
		Time:      fix.CapturedAt.Local().Format("15:04:05"),
	}
}

// Display renders tracker state. Implementations must be safe for
// concurrent use and must not call back into the Tracker.
type Display interface {
	ShowFix(Reading)
	ShowStatus(Status)
	ShowControls(Controls)
}

// Displays fans every update out to each member.
type Displays []Display

func (d Displays) ShowFix(r Reading) {
	for _, disp := range d {
		disp.ShowFix(r)
	}
}

func (d Displays) ShowStatus(s Status) {
	for _, disp := range d {
		disp.ShowStatus(s)
	}
}

func (d Displays) ShowControls(c Controls) {
	for _, disp := range d {
		disp.ShowControls(c)
	}
}
