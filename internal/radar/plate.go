package radar

// PlateLen is the length of a Mercosul plate.
const PlateLen = 7

// CaptureFailedMarker replaces the plate on records whose capture failed.
const CaptureFailedMarker = "FAILED"

func isLetter(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }

// PlateIsValid reports whether plate follows the Mercosul layout LLLDLDD,
// for example ABC1D23. Only uppercase ASCII letters are accepted.
func PlateIsValid(plate string) bool {
	if len(plate) != PlateLen {
		return false
	}
	return isLetter(plate[0]) && isLetter(plate[1]) && isLetter(plate[2]) &&
		isDigit(plate[3]) &&
		isLetter(plate[4]) &&
		isDigit(plate[5]) && isDigit(plate[6])
}
