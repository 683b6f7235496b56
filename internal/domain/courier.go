package domain

import "time"

// CourierMode is how a courier moves.
type CourierMode string

// List of courier modes
const (
	ModeFoot CourierMode = "foot"
	ModeBike CourierMode = "bike"
)

// Valid checks if the CourierMode is known.
func (m CourierMode) Valid() bool {
	return m == ModeFoot || m == ModeBike
}

// WorkWindow is a daily on-duty window expressed as offsets from local midnight.
// End before Start means the window wraps past midnight.
type WorkWindow struct {
	Start time.Duration
	End   time.Duration
}

// Contains reports whether t's wall-clock time falls inside the window (inclusive).
func (w WorkWindow) Contains(t time.Time) bool {
	h, m, s := t.Clock()
	now := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
	if w.Start <= w.End {
		return now >= w.Start && now <= w.End
	}
	return now >= w.Start || now <= w.End
}

// Courier is a delivery profile.
type Courier struct {
	ID         int64
	UserID     int64
	Mode       CourierMode
	Window     *WorkWindow
	WorkActive bool
	IsBusy     bool
	Balance    int64
}

// OnDuty reports whether the courier is active and inside its window at t.
// A courier without a window is treated as always in-window.
func (c *Courier) OnDuty(t time.Time) bool {
	if !c.WorkActive {
		return false
	}
	if c.Window == nil {
		return true
	}
	return c.Window.Contains(t)
}
