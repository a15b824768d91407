package nexstar

import (
	"fmt"
)

// RADec is a sky-relative position: right ascension in hours,
// declination in signed degrees.
type RADec struct {
	RAHours    float64 `json:"ra_hours"`
	DecDegrees float64 `json:"dec_degrees"`
}

// AltAz is a horizon-relative position: azimuth in [0,360), altitude
// in signed degrees.
type AltAz struct {
	AzDegrees  float64 `json:"az_degrees"`
	AltDegrees float64 `json:"alt_degrees"`
}

// TrackingMode selects the mount's sidereal drive.
type TrackingMode byte

const (
	TrackingOff     TrackingMode = 0
	TrackingAltAz   TrackingMode = 1
	TrackingEQNorth TrackingMode = 2
	TrackingEQSouth TrackingMode = 3
)

func (m TrackingMode) String() string {
	switch m {
	case TrackingOff:
		return "off"
	case TrackingAltAz:
		return "alt-az"
	case TrackingEQNorth:
		return "eq-north"
	case TrackingEQSouth:
		return "eq-south"
	}
	return fmt.Sprintf("unknown(%d)", byte(m))
}

// Location is the observer's site. Latitude is positive north,
// longitude positive east.
type Location struct {
	LatDegrees float64 `json:"lat_degrees"`
	LonDegrees float64 `json:"lon_degrees"`
}

// Time is the hand controller's clock. UTCOffset is signed whole
// hours.
type Time struct {
	Hour, Minute, Second int
	Month, Day, Year     int
	UTCOffset            int
	DST                  bool
}

// Axis selects a motion axis for fixed-rate moves.
type Axis byte

const (
	AxisAzimuth  Axis = 1
	AxisAltitude Axis = 2
)

// Direction selects the sense of a fixed-rate move.
type Direction byte

const (
	DirPositive Direction = 17
	DirNegative Direction = 18
)

// Telescope translates domain coordinates and modes into wire
// commands and back. All range checks happen before any I/O, so a
// bad argument never results in a partial write.
type Telescope struct {
	exec *Executor
}

// NewTelescope wraps an executor.
func NewTelescope(exec *Executor) *Telescope {
	return &Telescope{exec: exec}
}

// Close closes the underlying connection.
func (t *Telescope) Close() error {
	return t.exec.Close()
}

// Connected reports whether the underlying transport is open.
func (t *Telescope) Connected() bool {
	return t.exec.Connected()
}

func checkRADec(raHours, decDegrees float64) error {
	if raHours < 0 || raHours >= 24 {
		return fmt.Errorf("%w: ra %v hours, want [0,24)", ErrInvalidCoordinate, raHours)
	}
	if decDegrees < -90 || decDegrees > 90 {
		return fmt.Errorf("%w: dec %v degrees, want [-90,90]", ErrInvalidCoordinate, decDegrees)
	}
	return nil
}

func checkAltAz(azDegrees, altDegrees float64) error {
	if azDegrees < 0 || azDegrees >= 360 {
		return fmt.Errorf("%w: az %v degrees, want [0,360)", ErrInvalidCoordinate, azDegrees)
	}
	if altDegrees < -90 || altDegrees > 90 {
		return fmt.Errorf("%w: alt %v degrees, want [-90,90]", ErrInvalidCoordinate, altDegrees)
	}
	return nil
}

// GotoRADec slews to the given equatorial position. An empty reply is
// success.
func (t *Telescope) GotoRADec(raHours, decDegrees float64) error {
	if err := checkRADec(raHours, decDegrees); err != nil {
		return err
	}
	cmd := "R" + EncodePair(HoursToDegrees(raHours), SignedToWire(decDegrees))
	return t.exec.SendEmpty([]byte(cmd))
}

// SyncRADec tells the mount that it is currently pointed at the given
// equatorial position.
func (t *Telescope) SyncRADec(raHours, decDegrees float64) error {
	if err := checkRADec(raHours, decDegrees); err != nil {
		return err
	}
	cmd := "S" + EncodePair(HoursToDegrees(raHours), SignedToWire(decDegrees))
	return t.exec.SendEmpty([]byte(cmd))
}

// GotoAltAz slews to the given horizon position.
func (t *Telescope) GotoAltAz(azDegrees, altDegrees float64) error {
	if err := checkAltAz(azDegrees, altDegrees); err != nil {
		return err
	}
	cmd := "B" + EncodePair(azDegrees, SignedToWire(altDegrees))
	return t.exec.SendEmpty([]byte(cmd))
}

// PositionRADec reads the mount's equatorial position.
func (t *Telescope) PositionRADec() (RADec, error) {
	ra, dec, err := t.exec.GetCoordinatePair([]byte("E"))
	if err != nil {
		return RADec{}, err
	}
	return RADec{RAHours: DegreesToHours(ra), DecDegrees: WireToSigned(dec)}, nil
}

// PositionAltAz reads the mount's horizon position.
func (t *Telescope) PositionAltAz() (AltAz, error) {
	az, alt, err := t.exec.GetCoordinatePair([]byte("Z"))
	if err != nil {
		return AltAz{}, err
	}
	return AltAz{AzDegrees: az, AltDegrees: WireToSigned(alt)}, nil
}

// Slewing reports whether a goto is in progress.
func (t *Telescope) Slewing() (bool, error) {
	b, err := t.exec.GetSingleByte([]byte("L"))
	if err != nil {
		return false, err
	}
	return b == '1', nil
}

// CancelGoto aborts an in-progress goto.
func (t *Telescope) CancelGoto() error {
	return t.exec.SendEmpty([]byte("M"))
}

// Move starts (or, with rate 0, stops) fixed-rate motion on one axis.
// Rates run 0 through 9.
func (t *Telescope) Move(axis Axis, dir Direction, rate int) error {
	if axis != AxisAzimuth && axis != AxisAltitude {
		return fmt.Errorf("%w: axis %d", ErrOutOfRange, axis)
	}
	if dir != DirPositive && dir != DirNegative {
		return fmt.Errorf("%w: direction %d", ErrOutOfRange, dir)
	}
	if rate < 0 || rate > 9 {
		return fmt.Errorf("%w: rate %d, want 0..9", ErrOutOfRange, rate)
	}
	return t.exec.SendEmpty([]byte{'P', byte(axis), byte(dir), byte(rate), 0, 0, 0})
}

// TrackingMode reads the current tracking mode.
func (t *Telescope) TrackingMode() (TrackingMode, error) {
	b, err := t.exec.GetSingleByte([]byte("t"))
	if err != nil {
		return TrackingOff, err
	}
	return TrackingMode(b), nil
}

// SetTrackingMode sets the tracking mode.
func (t *Telescope) SetTrackingMode(mode TrackingMode) error {
	if mode > TrackingEQSouth {
		return fmt.Errorf("%w: tracking mode %d", ErrOutOfRange, mode)
	}
	return t.exec.SendEmpty([]byte{'T', byte(mode)})
}

// Location reads the observer site stored in the hand controller.
// The reply is 16 hex characters: latitude then longitude, each in
// the 8-hex-digit unsigned-wire form.
func (t *Telescope) Location() (Location, error) {
	reply, err := t.exec.Send([]byte("w"))
	if err != nil {
		return Location{}, err
	}
	if len(reply) != 16 {
		return Location{}, fmt.Errorf("%w: location reply %q is %d chars, want 16", ErrMalformedReply, reply, len(reply))
	}
	lat, err := HexToDegrees(string(reply[:8]))
	if err != nil {
		return Location{}, err
	}
	lon, err := HexToDegrees(string(reply[8:]))
	if err != nil {
		return Location{}, err
	}
	return Location{LatDegrees: WireToSigned(lat), LonDegrees: WireToSigned(lon)}, nil
}

// SetLocation stores the observer site in the hand controller.
func (t *Telescope) SetLocation(loc Location) error {
	if loc.LatDegrees < -90 || loc.LatDegrees > 90 {
		return fmt.Errorf("%w: latitude %v, want [-90,90]", ErrInvalidCoordinate, loc.LatDegrees)
	}
	if loc.LonDegrees < -180 || loc.LonDegrees > 180 {
		return fmt.Errorf("%w: longitude %v, want [-180,180]", ErrInvalidCoordinate, loc.LonDegrees)
	}
	cmd := "W" + DegreesToHex(SignedToWire(loc.LatDegrees)) + DegreesToHex(SignedToWire(loc.LonDegrees))
	return t.exec.SendEmpty([]byte(cmd))
}

// Time reads the hand controller's clock.
func (t *Telescope) Time() (Time, error) {
	b, err := t.exec.GetTimeBytes([]byte("h"))
	if err != nil {
		return Time{}, err
	}
	return Time{
		Hour:      int(b[0]),
		Minute:    int(b[1]),
		Second:    int(b[2]),
		Month:     int(b[3]),
		Day:       int(b[4]),
		Year:      2000 + int(b[5]),
		UTCOffset: int(int8(b[6])),
		DST:       b[7] == 1,
	}, nil
}

// SetTime sets the hand controller's clock.
func (t *Telescope) SetTime(tm Time) error {
	switch {
	case tm.Hour < 0 || tm.Hour > 23:
		return fmt.Errorf("%w: hour %d", ErrOutOfRange, tm.Hour)
	case tm.Minute < 0 || tm.Minute > 59:
		return fmt.Errorf("%w: minute %d", ErrOutOfRange, tm.Minute)
	case tm.Second < 0 || tm.Second > 59:
		return fmt.Errorf("%w: second %d", ErrOutOfRange, tm.Second)
	case tm.Month < 1 || tm.Month > 12:
		return fmt.Errorf("%w: month %d", ErrOutOfRange, tm.Month)
	case tm.Day < 1 || tm.Day > 31:
		return fmt.Errorf("%w: day %d", ErrOutOfRange, tm.Day)
	case tm.Year < 2000 || tm.Year > 2255:
		return fmt.Errorf("%w: year %d", ErrOutOfRange, tm.Year)
	case tm.UTCOffset < -12 || tm.UTCOffset > 14:
		return fmt.Errorf("%w: utc offset %d", ErrOutOfRange, tm.UTCOffset)
	}
	dst := byte(0)
	if tm.DST {
		dst = 1
	}
	return t.exec.SendEmpty([]byte{
		'H',
		byte(tm.Hour), byte(tm.Minute), byte(tm.Second),
		byte(tm.Month), byte(tm.Day), byte(tm.Year - 2000),
		byte(int8(tm.UTCOffset)), dst,
	})
}

// Version reads the hand controller firmware version.
func (t *Telescope) Version() (string, error) {
	b, err := t.exec.GetTwoBytes([]byte("V"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d", b[0], b[1]), nil
}

// Model reads the mount model byte.
func (t *Telescope) Model() (byte, error) {
	return t.exec.GetSingleByte([]byte("m"))
}

// Echo round-trips one byte through the hand controller. Useful as a
// link check.
func (t *Telescope) Echo(c byte) error {
	b, err := t.exec.GetSingleByte([]byte{'K', c})
	if err != nil {
		return err
	}
	if b != c {
		return fmt.Errorf("%w: echoed %q, want %q", ErrMalformedReply, b, c)
	}
	return nil
}
