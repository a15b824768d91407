// Package tracker points the mount at a solar-system body on a
// cadence, using topocentric positions from NOVAS. It consumes the
// mount only through the mount.Mount interface, the same surface any
// external catalog or planetarium integration would use.
package tracker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pebbe/novas"

	"github.com/obsdeck/nexstar_interface/mount"
)

// DefaultInterval is how often the goto target is refreshed.
const DefaultInterval = 30 * time.Second

var planets = map[string]func() *novas.Body{
	"mercury": novas.Mercury,
	"venus":   novas.Venus,
	"mars":    novas.Mars,
	"jupiter": novas.Jupiter,
	"saturn":  novas.Saturn,
	"uranus":  novas.Uranus,
	"neptune": novas.Neptune,
	"pluto":   novas.Pluto,
	"sun":     novas.Sun,
	"moon":    novas.Moon,
}

// Body looks up a solar-system body by name.
func Body(name string) (*novas.Body, error) {
	f, ok := planets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("tracker: unknown body %q", name)
	}
	return f(), nil
}

// Tracker refreshes the mount's goto target with the body's current
// topocentric position.
type Tracker struct {
	mount    mount.Mount
	name     string
	body     *novas.Body
	place    *novas.Place
	interval time.Duration

	// ExpectSlew, when set, is raised before each commanded move and
	// lowered once the slew completes, so the position monitor does
	// not alert on intentional motion.
	ExpectSlew func(bool)
}

// New returns a tracker for the named body as seen from place. A
// non-positive interval selects DefaultInterval.
func New(m mount.Mount, name string, place *novas.Place, interval time.Duration) (*Tracker, error) {
	body, err := Body(name)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{mount: m, name: name, body: body, place: place, interval: interval}, nil
}

// PlaceFor builds a NOVAS observer site from an observer latitude and
// longitude, with nominal temperature and pressure.
func PlaceFor(latDegrees, lonDegrees float64) *novas.Place {
	return novas.NewPlace(latDegrees, lonDegrees, 0, 15, 1010)
}

// Run issues a goto to the body's current position every interval
// until ctx is canceled. Command failures are logged and retried on
// the next cycle; a tracking loop should not die because one goto
// timed out.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		t.point(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.interval):
		}
	}
}

func (t *Tracker) point(ctx context.Context) {
	data := t.body.Topo(novas.Now(), t.place, novas.REFR_NONE)
	if t.ExpectSlew != nil {
		t.ExpectSlew(true)
		defer t.ExpectSlew(false)
	}
	// Topo returns RA in hours and Dec in degrees, the same
	// conventions the mount speaks.
	if err := t.mount.GotoRADec(data.RA, data.Dec); err != nil {
		log.Printf("tracker: goto %s: %v", t.name, err)
		return
	}
	t.waitForSlew(ctx)
}

// waitForSlew polls the slewing flag until the goto completes, the
// context ends, or a generous deadline passes.
func (t *Tracker) waitForSlew(ctx context.Context) {
	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		slewing, err := t.mount.Slewing()
		if err != nil || !slewing {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
