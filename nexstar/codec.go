package nexstar

import (
	"fmt"
	"math"
	"strconv"
)

// The wire represents an angle as a fraction of a full circle in
// 1/2^32 units, printed as 8 upper-case hex digits. One LSB is
// 360/2^32 degrees, about 0.0003 arcseconds.
const wireScale = 4294967296.0 // 2^32

// LSBDegrees is the smallest representable angular increment.
const LSBDegrees = 360.0 / wireScale

// DegreesToHex encodes an angle as the wire's 8-hex-digit fixed-point
// form. The angle is normalized modulo 360 into [0,360) first, so the
// encoding is total over all reals. Quantization is by truncation;
// this is a protocol property, not a rounding bug.
func DegreesToHex(degrees float64) string {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	// A tiny negative input can round d += 360 up to exactly 360,
	// which would put the uint32 conversion out of range.
	if d >= 360 {
		d = 0
	}
	return fmt.Sprintf("%08X", uint32(d/360*wireScale))
}

// HexToDegrees decodes an 8-hex-digit wire coordinate. The wire
// always supplies exactly 8 characters, so any other length is
// rejected as malformed.
func HexToDegrees(s string) (float64, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("%w: coordinate %q is %d chars, want 8", ErrMalformedReply, s, len(s))
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate %q: %v", ErrMalformedReply, s, err)
	}
	return float64(v) / wireScale * 360, nil
}

// EncodePair frames two angles as the 17-character "XXXXXXXX,YYYYYYYY"
// form used by goto, sync and position replies.
func EncodePair(a, b float64) string {
	return DegreesToHex(a) + "," + DegreesToHex(b)
}

// DecodePair unframes a 17-character coordinate pair. A missing comma
// or wrong length is a malformed reply, never a panic: bad telemetry
// is an expected operating condition.
func DecodePair(s string) (float64, float64, error) {
	if len(s) != 17 {
		return 0, 0, fmt.Errorf("%w: pair %q is %d chars, want 17", ErrMalformedReply, s, len(s))
	}
	if s[8] != ',' {
		return 0, 0, fmt.Errorf("%w: pair %q has no comma at index 8", ErrMalformedReply, s)
	}
	a, err := HexToDegrees(s[:8])
	if err != nil {
		return 0, 0, err
	}
	b, err := HexToDegrees(s[9:])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// SignedToWire maps a signed angle (declination, altitude, latitude,
// longitude) onto the wire's unsigned 0..360 convention, where
// negative values appear as value+360.
func SignedToWire(degrees float64) float64 {
	if degrees < 0 {
		return degrees + 360
	}
	return degrees
}

// WireToSigned is the inverse of SignedToWire on [-180,180).
func WireToSigned(degrees float64) float64 {
	if degrees >= 180 {
		return degrees - 360
	}
	return degrees
}

// HoursToDegrees converts right ascension hours to degrees.
func HoursToDegrees(hours float64) float64 {
	return hours * 15
}

// DegreesToHours converts degrees to right ascension hours.
func DegreesToHours(degrees float64) float64 {
	return degrees / 15
}
