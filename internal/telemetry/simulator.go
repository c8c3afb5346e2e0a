package telemetry

import (
	"math"
	"time"
)

// Simulator produces a smooth climb, cruise and descent cycle without any
// external connection. Values are a pure function of elapsed time.
type Simulator struct {
	start  time.Time
	now    func() time.Time
	period time.Duration
}

const (
	simBaseAltitude = 3000.0
	simPeakVS       = 700.0
	simCruiseRPM    = 2300.0
	simRPMPerFPM    = 0.3
)

// NewSimulator starts a simulated flight at the current time.
func NewSimulator(now func() time.Time) *Simulator {
	if now == nil {
		now = time.Now
	}
	return &Simulator{start: now(), now: now, period: 2 * time.Minute}
}

// Read implements Source.
func (s *Simulator) Read(name string) (float64, error) {
	t := s.now().Sub(s.start).Seconds()
	p := s.period.Seconds()
	w := 2 * math.Pi / p
	vs := simPeakVS * math.Sin(w*t)
	switch name {
	case VarVerticalSpeed:
		return vs, nil
	case VarAltitude:
		// Vertical speed is in feet per minute; integrate over seconds.
		return simBaseAltitude + simPeakVS/60*(1-math.Cos(w*t))/w, nil
	case VarEngineRPM:
		return simCruiseRPM + vs*simRPMPerFPM, nil
	default:
		return 0, ErrUnavailable
	}
}
