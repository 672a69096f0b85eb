package display

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/speedtrap/internal/radar"
)

// DefaultTallyWindow is the number of recent speeds the percentiles cover.
const DefaultTallyWindow = 500

// TallyStats is a snapshot of the tally.
type TallyStats struct {
	Rendered   uint64            `json:"rendered"`
	ByStatus   map[string]uint64 `json:"by_status"`
	ByPlate    map[string]uint64 `json:"by_plate"`
	WindowSize int               `json:"window_size"`
	P50Speed   float64           `json:"p50_speed_kph"`
	P85Speed   float64           `json:"p85_speed_kph"`
	P98Speed   float64           `json:"p98_speed_kph"`
	MaxSpeed   uint32            `json:"max_speed_kph"`
}

// Tally counts rendered records and tracks speed percentiles over a sliding
// window.
type Tally struct {
	mu       sync.Mutex
	rendered uint64
	byStatus map[radar.Status]uint64
	byPlate  map[radar.PlateState]uint64
	window   []float64
	next     int
	full     bool
	max      uint32
}

// NewTally creates a tally over the last window speeds. A non-positive window
// selects DefaultTallyWindow.
func NewTally(window int) *Tally {
	if window <= 0 {
		window = DefaultTallyWindow
	}
	return &Tally{
		byStatus: make(map[radar.Status]uint64),
		byPlate:  make(map[radar.PlateState]uint64),
		window:   make([]float64, window),
	}
}

// Add records one rendered record. Records that complete an earlier pending
// record count towards the plate states only, so a vehicle's speed is counted
// once.
func (t *Tally) Add(rec radar.DisplayRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rendered++
	t.byPlate[rec.PlateState()]++
	if rec.Captured() {
		return
	}
	t.byStatus[rec.Status]++
	t.window[t.next] = float64(rec.SpeedKPH)
	t.next++
	if t.next == len(t.window) {
		t.next = 0
		t.full = true
	}
	t.max = max(t.max, rec.SpeedKPH)
}

// Stats computes the current snapshot.
func (t *Tally) Stats() TallyStats {
	t.mu.Lock()
	n := t.next
	if t.full {
		n = len(t.window)
	}
	speeds := make([]float64, n)
	copy(speeds, t.window[:n])
	s := TallyStats{
		Rendered:   t.rendered,
		ByStatus:   make(map[string]uint64, len(t.byStatus)),
		ByPlate:    make(map[string]uint64, len(t.byPlate)),
		WindowSize: n,
		MaxSpeed:   t.max,
	}
	for k, v := range t.byStatus {
		s.ByStatus[k.String()] = v
	}
	for k, v := range t.byPlate {
		s.ByPlate[k.String()] = v
	}
	t.mu.Unlock()

	if n == 0 {
		return s
	}
	sort.Float64s(speeds)
	s.P50Speed = stat.Quantile(0.50, stat.Empirical, speeds, nil)
	s.P85Speed = stat.Quantile(0.85, stat.Empirical, speeds, nil)
	s.P98Speed = stat.Quantile(0.98, stat.Empirical, speeds, nil)
	return s
}
