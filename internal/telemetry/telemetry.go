// Package telemetry polls flight readings and classifies the flight regime.
package telemetry

import (
	"errors"
	"fmt"
)

// Simulator variable names queried on every poll.
const (
	VarAltitude      = "PLANE_ALTITUDE"
	VarVerticalSpeed = "VERTICAL_SPEED"
	VarEngineRPM     = "GENERAL_ENG_RPM:1"
)

// Vertical speed thresholds separating the regimes.
const (
	DescentBelow = -50.0
	ClimbAbove   = 50.0
)

// ErrUnavailable is returned by a Source that has no current value.
var ErrUnavailable = errors.New("telemetry unavailable")

// Source answers reads from an in-memory snapshot. Read must not block.
type Source interface {
	Read(name string) (float64, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(name string) (float64, error)

// Read implements Source.
func (f SourceFunc) Read(name string) (float64, error) {
	return f(name)
}

// Unavailable is a Source that always fails.
var Unavailable Source = SourceFunc(func(string) (float64, error) {
	return 0, ErrUnavailable
})

// Regime is the coarse flight state derived from vertical speed.
type Regime int

const (
	RegimeLevel Regime = iota
	RegimeClimb
	RegimeDescent
)

func (r Regime) String() string {
	switch r {
	case RegimeClimb:
		return "climb"
	case RegimeDescent:
		return "descent"
	default:
		return "level"
	}
}

// Advisory is the recommended engine and knob setting for a regime.
type Advisory struct {
	Engine string
	Knob   string
}

var advisories = map[Regime]Advisory{
	RegimeClimb:   {Engine: "full power 2500 rpm", Knob: "mixture rich"},
	RegimeDescent: {Engine: "reduce to 1800 rpm", Knob: "carb heat on"},
	RegimeLevel:   {Engine: "cruise 2300 rpm", Knob: "mixture lean"},
}

// AdvisoryFor returns the fixed advisory pair of r.
func AdvisoryFor(r Regime) Advisory {
	return advisories[r]
}

// Reading is one poll of the three flight variables.
type Reading struct {
	Altitude      float64
	VerticalSpeed float64
	EngineRPM     float64
	Available     bool
}

// Classify maps vertical speed onto a regime.
func Classify(verticalSpeed float64) Regime {
	switch {
	case verticalSpeed < DescentBelow:
		return RegimeDescent
	case verticalSpeed > ClimbAbove:
		return RegimeClimb
	default:
		return RegimeLevel
	}
}

// Sample reads all three variables from src. Any failure yields a zero
// reading marked unavailable.
func Sample(src Source) Reading {
	if src == nil {
		return Reading{}
	}
	alt, err := src.Read(VarAltitude)
	if err != nil {
		return Reading{}
	}
	vs, err := src.Read(VarVerticalSpeed)
	if err != nil {
		return Reading{}
	}
	rpm, err := src.Read(VarEngineRPM)
	if err != nil {
		return Reading{}
	}
	return Reading{Altitude: alt, VerticalSpeed: vs, EngineRPM: rpm, Available: true}
}

// Format renders the status line pushed to the display.
func Format(r Reading) string {
	regime := Classify(r.VerticalSpeed)
	adv := AdvisoryFor(regime)
	line := fmt.Sprintf("alt:%.1f,var:%.1f rpm:%.0f  %s · engine %s · %s",
		r.Altitude, r.VerticalSpeed, r.EngineRPM, regime, adv.Engine, adv.Knob)
	if !r.Available {
		line += "  (no telemetry)"
	}
	return line
}
