package indicators

// Side is a trade direction
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// longMomentum holds the momentum colours that admit a LONG entry
// (negative momentum turning, or fresh positive momentum)
func longMomentum(c MomentumColor) bool {
	return c == MomentumMaroon || c == MomentumLime
}

func shortMomentum(c MomentumColor) bool {
	return c == MomentumGreen || c == MomentumRed
}

// DetectSignal evaluates the entry rules on a snapshot. Returns the
// side and true when the latest candle crossed the trend line in a
// supported direction; at most one side can fire per candle.
func DetectSignal(s *Snapshot) (Side, bool) {
	if s.OpenPrice < s.TMValue && s.CurrentPrice > s.TMValue &&
		s.TMColor == TrendBlue && longMomentum(s.MomentumColor) {
		return SideLong, true
	}

	if s.OpenPrice > s.TMValue && s.CurrentPrice < s.TMValue &&
		s.TMColor == TrendRed && shortMomentum(s.MomentumColor) {
		return SideShort, true
	}

	return "", false
}

// SignalStillValid reports whether the current context still supports
// a previously latched direction. A flip of the trend colour or a
// momentum colour outside the permitted set invalidates the latch.
func SignalStillValid(s *Snapshot, side Side) bool {
	switch side {
	case SideLong:
		return s.TMColor == TrendBlue && longMomentum(s.MomentumColor)
	case SideShort:
		return s.TMColor == TrendRed && shortMomentum(s.MomentumColor)
	default:
		return false
	}
}
