// Package capture models the asynchronous plate-capture step. A Worker takes
// capture requests off the request topic, hands each to a Capturer and
// publishes exactly one Result per request on the result topic.
package capture

import (
	"context"

	"github.com/banshee-data/speedtrap/internal/radar"
)

// Request asks for a plate capture of the vehicle in an infraction.
type Request struct {
	SampleID uint32            `json:"sample_id"`
	Type     radar.VehicleType `json:"type"`
	SpeedKPH uint32            `json:"speed_kph"`
	LimitKPH uint32            `json:"limit_kph"`
}

// Result is the outcome of one capture. PlateValid is computed from Plate
// alone, whatever Success says.
type Result struct {
	SampleID   uint32 `json:"sample_id"`
	Success    bool   `json:"success"`
	Plate      string `json:"plate"`
	PlateValid bool   `json:"plate_valid"`
}

// Outcome returns the metrics label for the result.
func (r Result) Outcome() string {
	if r.Success {
		return "success"
	}
	return "failure"
}

// Capturer performs a single capture. A non-nil error means no result could
// be produced at all (for example the context was cancelled); a failed read
// is reported through Result.Success instead.
type Capturer interface {
	Capture(ctx context.Context, req Request) (Result, error)
}
