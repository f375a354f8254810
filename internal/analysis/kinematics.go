package analysis

import (
	"fmt"
	"math"

	"github.com/swelljoe/rocketdash/internal/telemetry"
)

// StandardGravity converts accelerations to g.
const StandardGravity = 9.80665

// smoothing window applied before each differentiation
const kinematicsWindow = 5

// Kinematics holds vertical speed and acceleration derived from altitude.
type Kinematics struct {
	Time         []float64
	Altitude     []float64
	Speed        []float64 // m/s
	Acceleration []float64 // m/s²
}

// Derive smooths altitude, then differentiates twice. Where the smoothing
// window is incomplete the raw value is used.
func Derive(f *telemetry.Flight) (*Kinematics, error) {
	if !f.Has(telemetry.ColAltitude) {
		return nil, fmt.Errorf("%s: missing altitude_m column", f.Name)
	}
	if len(f.Samples) < 3 {
		return nil, fmt.Errorf("%s: need at least 3 samples", f.Name)
	}
	k := &Kinematics{
		Time:     f.Times(),
		Altitude: f.Column(telemetry.ColAltitude),
	}
	k.Speed = Derivative(k.Time, smooth(k.Altitude))
	k.Acceleration = Derivative(k.Time, smooth(k.Speed))
	return k, nil
}

func smooth(xs []float64) []float64 {
	m := RollingMean(xs, kinematicsWindow, true)
	for i := range m {
		if math.IsNaN(m[i]) {
			m[i] = xs[i]
		}
	}
	return m
}

// Propulsion summarises the powered part of the ascent. The water thrust
// ends roughly where vertical speed peaks.
type Propulsion struct {
	MaxSpeed      float64
	MaxSpeedTime  float64
	MaxAccel      float64
	MaxAccelG     float64
	BurnTime      float64 // launch to max speed
	MeanAccel     float64 // MaxSpeed / BurnTime
	LaunchTime    float64
	SensorMaxAccZ float64 // NaN when the logger has no accelerometer
}

// AnalyzePropulsion looks at the samples between launch and apogee.
func AnalyzePropulsion(f *telemetry.Flight) (*Propulsion, error) {
	k, err := Derive(f)
	if err != nil {
		return nil, err
	}
	apogee, err := Apogee(k.Altitude)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}

	phases, err := Phases(f)
	if err != nil {
		return nil, err
	}
	launch := 0
	for _, ph := range phases {
		if ph.Name == PhaseAscent {
			launch = ph.Start
		}
	}

	p := &Propulsion{LaunchTime: k.Time[launch], SensorMaxAccZ: math.NaN()}
	ascent := k.Speed[launch : apogee+1]
	iv := ArgMax(ascent)
	if iv < 0 {
		return nil, fmt.Errorf("%s: no vertical speed during ascent", f.Name)
	}
	iv += launch
	p.MaxSpeed = k.Speed[iv]
	p.MaxSpeedTime = k.Time[iv]
	p.BurnTime = p.MaxSpeedTime - p.LaunchTime

	if ia := ArgMax(k.Acceleration[launch : iv+1]); ia >= 0 {
		p.MaxAccel = k.Acceleration[launch+ia]
		p.MaxAccelG = p.MaxAccel / StandardGravity
	}
	if p.BurnTime > 0 {
		p.MeanAccel = p.MaxSpeed / p.BurnTime
	}
	if f.Has(telemetry.ColAccelZ) {
		p.SensorMaxAccZ = NanMax(f.Column(telemetry.ColAccelZ))
	}
	return p, nil
}

// Loads is the structural load factor n = 1 + a/g over the flight.
type Loads struct {
	Time        []float64
	LoadFactor  []float64
	MaxLoad     float64
	MaxLoadTime float64
	MinLoad     float64
	MinLoadTime float64
	// Landing is the peak load in the last phase, the impact with the ground.
	Landing float64
}

// AnalyzeLoads derives the load factor from the altitude's second derivative.
func AnalyzeLoads(f *telemetry.Flight) (*Loads, error) {
	k, err := Derive(f)
	if err != nil {
		return nil, err
	}
	l := &Loads{Time: k.Time, LoadFactor: make([]float64, len(k.Acceleration))}
	for i, a := range k.Acceleration {
		l.LoadFactor[i] = 1 + a/StandardGravity
	}

	imax, imin := ArgMax(l.LoadFactor), ArgMin(l.LoadFactor)
	if imax < 0 {
		return nil, fmt.Errorf("%s: no acceleration could be derived", f.Name)
	}
	l.MaxLoad, l.MaxLoadTime = l.LoadFactor[imax], l.Time[imax]
	l.MinLoad, l.MinLoadTime = l.LoadFactor[imin], l.Time[imin]

	l.Landing = math.NaN()
	if phases, err := Phases(f); err == nil {
		// Impact shows up while the rocket comes to rest: the end of the
		// descent and the landed phase.
		for _, ph := range phases {
			if ph.Name == PhaseLanded || ph.Name == PhaseDescent {
				start := ph.Start
				if ph.Name == PhaseDescent {
					start = max(ph.Start, ph.End-kinematicsWindow)
				}
				seg := l.LoadFactor[start : ph.End+1]
				if v := NanMax(seg); !math.IsNaN(v) && (math.IsNaN(l.Landing) || v > l.Landing) {
					l.Landing = v
				}
			}
		}
	}
	return l, nil
}
