package logic

// View is everything the display and status LED depend on.
type View struct {
	Jam       JamState
	Selecting bool
	// Candidate is the value under the menu cursor.
	Candidate Digit
	Mode      Mode
	Regulated bool
	// Current is the confirmed velocity digit or bottle type.
	Current Digit
}

// Project maps controller state to a display digit and LED color.
func Project(v View) (Digit, Color) {
	switch {
	case v.Jam == JamLatched:
		return DigitError, ColorError
	case v.Selecting:
		return v.Candidate, ColorSelecting
	case v.Mode == ModeManual && !v.Regulated:
		return v.Current, ColorYellow
	default:
		return v.Current, ColorNormal
	}
}

// StatusOf maps controller state to the telemetry status name.
func StatusOf(v View) Status {
	switch {
	case v.Jam == JamLatched:
		return StatusJam
	case v.Selecting:
		return StatusSelecting
	case v.Mode == ModeManual && !v.Regulated:
		return StatusRegulating
	default:
		return StatusRunning
	}
}
