package radar

// DisplayRecord is what the display sink renders. It starts without a plate
// and may be completed once by a capture result before it is queued again.
type DisplayRecord struct {
	ID             uint32 `json:"id"`
	Classification `json:"classification"`
	Plate          string `json:"plate,omitempty"`
	PlateValid     bool   `json:"plate_valid"`
}

// PlateState describes what is known about a record's plate.
type PlateState int

const (
	PlatePending PlateState = iota
	PlateOK
	PlateInvalid
)

// String returns the display text for the plate state.
func (s PlateState) String() string {
	switch s {
	case PlateOK:
		return "plate ok"
	case PlateInvalid:
		return "plate invalid"
	default:
		return "capture pending"
	}
}

// PlateState reports whether the plate is still pending, valid, or
// invalid (a malformed read or a failed capture).
func (r DisplayRecord) PlateState() PlateState {
	switch {
	case r.Plate == "":
		return PlatePending
	case r.PlateValid:
		return PlateOK
	default:
		return PlateInvalid
	}
}

// WithPlate returns a copy of r completed with plate data.
func (r DisplayRecord) WithPlate(plate string, valid bool) DisplayRecord {
	r.Plate = plate
	r.PlateValid = valid
	return r
}

// Captured reports whether a capture attempt has completed for the record.
func (r DisplayRecord) Captured() bool {
	return r.Plate != ""
}
