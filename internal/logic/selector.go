package logic

// Stage is where the selector menu currently is.
type Stage int

const (
	StageSelectingMode Stage = iota
	StageSelectingVelocity
	StageSelectingBottle
	StageConfirmed
)

func (s Stage) String() string {
	switch s {
	case StageSelectingMode:
		return "SELECTING_MODE"
	case StageSelectingVelocity:
		return "SELECTING_VELOCITY"
	case StageSelectingBottle:
		return "SELECTING_BOTTLE"
	default:
		return "CONFIRMED"
	}
}

// Selection is the confirmed outcome of a menu session.
type Selection struct {
	Mode          Mode
	VelocityIndex int
	BottleIndex   int
}

// Speed returns the nominal conveyor speed of the selection in m/s.
func (s Selection) Speed() float64 {
	if s.Mode == ModeManual {
		return Velocities[s.VelocityIndex]
	}
	return BottleProfiles[s.BottleIndex].Speed
}

// Digit returns what the display shows for the selection while running.
func (s Selection) Digit() Digit {
	if s.Mode == ModeManual {
		return Digit(s.VelocityIndex + 1)
	}
	return Digit(BottleProfiles[s.BottleIndex].Type)
}

// Profile returns the automatic bottle profile.
func (s Selection) Profile() BottleProfile {
	return BottleProfiles[s.BottleIndex]
}

// Selector is the mode/parameter menu. It is driven one input at a time and
// never blocks; indexes survive between sessions so a pause re-offers the
// previous choice.
type Selector struct {
	stage       Stage
	modeIndex   int
	velIndex    int
	bottleIndex int
}

// NewSelector returns a selector at the boot menu.
func NewSelector() *Selector {
	return &Selector{
		stage:    StageSelectingMode,
		velIndex: DefaultVelocityIndex,
	}
}

// Begin re-enters the menu at mode selection.
func (s *Selector) Begin() {
	s.stage = StageSelectingMode
}

// Stage returns the current menu stage.
func (s *Selector) Stage() Stage {
	return s.stage
}

// Active reports whether the menu is still being navigated.
func (s *Selector) Active() bool {
	return s.stage != StageConfirmed
}

// Turn applies encoder movement. Mode and bottle indexes wrap, the velocity
// index clamps.
func (s *Selector) Turn(steps int) {
	if steps == 0 {
		return
	}
	switch s.stage {
	case StageSelectingMode:
		s.modeIndex = wrap(s.modeIndex+steps, 2)
	case StageSelectingVelocity:
		s.velIndex = clamp(s.velIndex+steps, 0, len(Velocities)-1)
	case StageSelectingBottle:
		s.bottleIndex = wrap(s.bottleIndex+steps, len(BottleProfiles))
	}
}

// Confirm handles a button press. It returns the event type for the choice
// just made, and done=true once a full selection is confirmed.
func (s *Selector) Confirm() (event EventType, done bool) {
	switch s.stage {
	case StageSelectingMode:
		if Mode(s.modeIndex) == ModeManual {
			s.stage = StageSelectingVelocity
		} else {
			s.stage = StageSelectingBottle
		}
		return EventModeSelected, false
	case StageSelectingVelocity:
		s.stage = StageConfirmed
		return EventVelocitySelected, true
	case StageSelectingBottle:
		s.stage = StageConfirmed
		return EventBottleSelected, true
	}
	return "", false
}

// Candidate returns the digit shown for the value under the cursor.
func (s *Selector) Candidate() Digit {
	switch s.stage {
	case StageSelectingMode:
		return Digit(s.modeIndex + 1)
	case StageSelectingVelocity:
		return Digit(s.velIndex + 1)
	case StageSelectingBottle:
		return Digit(BottleProfiles[s.bottleIndex].Type)
	}
	return s.Selection().Digit()
}

// Selection returns the values currently chosen.
func (s *Selector) Selection() Selection {
	return Selection{
		Mode:          Mode(s.modeIndex),
		VelocityIndex: s.velIndex,
		BottleIndex:   s.bottleIndex,
	}
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func clamp(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}
