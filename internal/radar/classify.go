// Package radar holds the pure enforcement rules: speed from transit time,
// vehicle class from axle count, the applicable limit, the warning threshold
// and the resulting status. Every function here is free of shared state and
// safe to call from any goroutine.
package radar

// VehicleType is the vehicle class derived from the axle count.
type VehicleType int

const (
	VehicleLight VehicleType = iota
	VehicleHeavy
)

// String returns the display name of the vehicle class.
func (t VehicleType) String() string {
	if t == VehicleHeavy {
		return "Heavy"
	}
	return "Light"
}

// Status is the compliance status of a measured speed.
type Status int

const (
	StatusNormal Status = iota
	StatusWarning
	StatusInfraction
)

// String returns the display name of the status.
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "Normal"
	case StatusWarning:
		return "Warning"
	case StatusInfraction:
		return "Infraction"
	default:
		return "Unknown"
	}
}

// Classification is the result of evaluating one crossing.
type Classification struct {
	Type       VehicleType `json:"type"`
	SpeedKPH   uint32      `json:"speed_kph"`
	LimitKPH   uint32      `json:"limit_kph"`
	WarningKPH uint32      `json:"warning_kph"`
	Status     Status      `json:"status"`
}

// Speed scaling: km/h = mm/ms * 3.6, kept in integers as 36/10.
const (
	speedScaleNum = 36
	speedScaleDen = 10
)

// HeavyAxleThreshold is the axle count from which a vehicle is heavy.
const HeavyAxleThreshold = 3

// CalcSpeedKPH returns the speed in km/h for a vehicle covering distanceMM in
// elapsedMS, truncated toward zero. Zero elapsed time yields zero.
func CalcSpeedKPH(distanceMM, elapsedMS uint32) uint32 {
	if elapsedMS == 0 {
		return 0
	}

	scaled := uint64(distanceMM) * speedScaleNum
	denom := uint64(elapsedMS) * speedScaleDen

	return uint32(scaled / denom)
}

// ClassifyVehicle returns VehicleHeavy for three or more axles.
func ClassifyVehicle(axles uint32) VehicleType {
	if axles >= HeavyAxleThreshold {
		return VehicleHeavy
	}
	return VehicleLight
}

// EvalStatus picks the limit for the vehicle class, derives the warning
// threshold as a truncated percentage of it and grades the speed.
func EvalStatus(speedKPH uint32, vt VehicleType, warningPercent, lightLimitKPH, heavyLimitKPH uint32) Classification {
	c := Classification{
		Type:     vt,
		SpeedKPH: speedKPH,
		LimitKPH: lightLimitKPH,
	}
	if vt == VehicleHeavy {
		c.LimitKPH = heavyLimitKPH
	}
	c.WarningKPH = uint32(uint64(c.LimitKPH) * uint64(warningPercent) / 100)

	switch {
	case speedKPH > c.LimitKPH:
		c.Status = StatusInfraction
	case speedKPH >= c.WarningKPH:
		c.Status = StatusWarning
	default:
		c.Status = StatusNormal
	}
	return c
}

// Limits is the static site configuration the evaluator needs.
type Limits struct {
	DistanceMM     uint32 `json:"sensor_distance_mm"`
	LightLimitKPH  uint32 `json:"light_limit_kph"`
	HeavyLimitKPH  uint32 `json:"heavy_limit_kph"`
	WarningPercent uint32 `json:"warning_percent"`
}

// Classify evaluates a crossing with the given axle count and transit time.
func (l Limits) Classify(axles, elapsedMS uint32) Classification {
	speed := CalcSpeedKPH(l.DistanceMM, elapsedMS)
	return EvalStatus(speed, ClassifyVehicle(axles), l.WarningPercent, l.LightLimitKPH, l.HeavyLimitKPH)
}

// LimitFor returns the configured limit for a vehicle class.
func (l Limits) LimitFor(vt VehicleType) uint32 {
	if vt == VehicleHeavy {
		return l.HeavyLimitKPH
	}
	return l.LightLimitKPH
}
