// Package display renders finalized records for the operator console and
// keeps a running tally of what it has shown.
package display

import (
	"fmt"

	"github.com/banshee-data/speedtrap/internal/radar"
)

const (
	colorReset     = "\033[0m"
	colorBoldGreen = "\033[1;32m"
	colorYellow    = "\033[33m"
	colorBoldRed   = "\033[1;31m"
)

// NoPlate is shown in the plate column while a capture is pending.
const NoPlate = "--"

func statusColor(s radar.Status) string {
	switch s {
	case radar.StatusNormal:
		return colorBoldGreen
	case radar.StatusWarning:
		return colorYellow
	default:
		return colorBoldRed
	}
}

// Render formats one record as a single line, for example
//
//	#12 Heavy speed=144 limit=80 warn=72 Infraction plate=ABC1D23 (plate ok)
//
// With color the status name is wrapped in an ANSI color.
func Render(rec radar.DisplayRecord, color bool) string {
	status := rec.Status.String()
	if color {
		status = statusColor(rec.Status) + status + colorReset
	}
	plate := rec.Plate
	if plate == "" {
		plate = NoPlate
	}
	return fmt.Sprintf("#%d %s speed=%d limit=%d warn=%d %s plate=%s (%s)",
		rec.ID, rec.Type, rec.SpeedKPH, rec.LimitKPH, rec.WarningKPH,
		status, plate, rec.PlateState())
}
