// Package mount defines the surface external collaborators see of a
// telescope mount: position readout, goto/sync, and tracking-mode
// control. Catalog lookups, ephemeris math and presentation all
// consume the mount only through these interfaces.
package mount

import "github.com/obsdeck/nexstar_interface/nexstar"

// Mount is implemented by *nexstar.Telescope.
type Mount interface {
	PositionRADec() (nexstar.RADec, error)
	PositionAltAz() (nexstar.AltAz, error)

	GotoRADec(raHours, decDegrees float64) error
	GotoAltAz(azDegrees, altDegrees float64) error
	SyncRADec(raHours, decDegrees float64) error
	CancelGoto() error
	Slewing() (bool, error)

	TrackingMode() (nexstar.TrackingMode, error)
	SetTrackingMode(nexstar.TrackingMode) error
}

// Mover is implemented by mounts that support fixed-rate motion.
type Mover interface {
	Move(axis nexstar.Axis, dir nexstar.Direction, rate int) error
}

// Sited is implemented by mounts that store an observer location.
type Sited interface {
	Location() (nexstar.Location, error)
	SetLocation(nexstar.Location) error
}
