package display

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/speedtrap/internal/radar"
)

func rec(id, speed uint32, status radar.Status) radar.DisplayRecord {
	return radar.DisplayRecord{ID: id, Classification: radar.Classification{SpeedKPH: speed, Status: status}}
}

func TestTally_Empty(t *testing.T) {
	s := NewTally(0).Stats()
	assert.Zero(t, s.Rendered)
	assert.Zero(t, s.WindowSize)
	assert.Zero(t, s.P85Speed)
}

func TestTally_CountsAndPercentiles(t *testing.T) {
	tally := NewTally(100)
	for i := uint32(1); i <= 100; i++ {
		status := radar.StatusNormal
		if i > 80 {
			status = radar.StatusInfraction
		}
		tally.Add(rec(i, i, status))
	}
	tally.Add(rec(90, 90, radar.StatusInfraction).WithPlate("ABC1D23", true))
	tally.Add(rec(95, 95, radar.StatusInfraction).WithPlate(radar.CaptureFailedMarker, false))

	s := tally.Stats()
	assert.Equal(t, uint64(102), s.Rendered)
	assert.Equal(t, uint64(80), s.ByStatus["Normal"])
	assert.Equal(t, uint64(20), s.ByStatus["Infraction"], "completions are not counted twice")
	assert.Equal(t, uint64(100), s.ByPlate["capture pending"])
	assert.Equal(t, uint64(1), s.ByPlate["plate ok"])
	assert.Equal(t, uint64(1), s.ByPlate["plate invalid"])
	assert.Equal(t, 100, s.WindowSize)
	assert.Equal(t, 50.0, s.P50Speed)
	assert.Equal(t, 85.0, s.P85Speed)
	assert.Equal(t, 98.0, s.P98Speed)
	assert.Equal(t, uint32(100), s.MaxSpeed)
}

func TestTally_WindowSlides(t *testing.T) {
	tally := NewTally(4)
	for _, v := range []uint32{200, 200, 200, 200, 10, 10, 10, 10} {
		tally.Add(rec(1, v, radar.StatusNormal))
	}
	s := tally.Stats()
	assert.Equal(t, 4, s.WindowSize)
	assert.Equal(t, 10.0, s.P98Speed)
	assert.Equal(t, uint32(200), s.MaxSpeed, "max covers every record")
}
