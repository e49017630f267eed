package power

// Round is the process-wide round state. The zero value is idle with
// tapping disallowed.
type Round struct {
	active         bool
	tappingAllowed bool
}

func (r *Round) Active() bool {
	return r.active
}

func (r *Round) TappingAllowed() bool {
	return r.tappingAllowed
}

// Start opens a round with tapping closed until explicitly allowed.
func (r *Round) Start() {
	r.active = true
	r.tappingAllowed = false
}

func (r *Round) End() {
	r.active = false
	r.tappingAllowed = false
}

// AllowTapping opens the tapping gate. It reports false and changes
// nothing when no round is active.
func (r *Round) AllowTapping() bool {
	if !r.active {
		return false
	}
	r.tappingAllowed = true

	return true
}

func (r *Round) DisallowTapping() {
	r.tappingAllowed = false
}

// Accepts reports whether contributions are currently taken. With gated
// set, the tapping gate must also be open.
func (r *Round) Accepts(gated bool) bool {
	if !r.active {
		return false
	}
	if gated {
		return r.tappingAllowed
	}

	return true
}
