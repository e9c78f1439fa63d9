package model

// TimeBand is a coarse pickup window chosen when placing a hold.  A nil
// *TimeBand means the order is for immediate pickup.
type TimeBand string

const (
	BandEleven TimeBand = "11:00am - 12:00pm"
	BandNoon   TimeBand = "12:00pm - 01:00pm"
)

// InstantLabel is how a hold or order without a time band is presented.
const InstantLabel = "instant"

// Valid reports whether b is one of the recognised wire values.
func (b TimeBand) Valid() bool {
	switch b {
	case BandEleven, BandNoon:
		return true
	}
	return false
}

// ParseTimeBand maps a wire string onto a band.  Unrecognised strings
// yield nil without error; callers at the HTTP boundary must reject them
// before getting here.
func ParseTimeBand(s string) *TimeBand {
	b := TimeBand(s)
	if !b.Valid() {
		return nil
	}
	return &b
}

// BandLabel renders a nullable band for grouping and display.
func BandLabel(b *TimeBand) string {
	if b == nil {
		return InstantLabel
	}
	return string(*b)
}
