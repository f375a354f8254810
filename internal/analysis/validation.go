package analysis

import (
	"fmt"
	"math"

	"github.com/swelljoe/rocketdash/internal/telemetry"
)

// LittlewoodHeight is the apogee of a ballistic flight lasting totalTime
// seconds: h = g·t²/8.
func LittlewoodHeight(totalTime, g float64) float64 {
	return g * totalTime * totalTime / 8
}

// ErrorPercent is |theoretical-actual| / actual · 100; 0 when actual is 0.
func ErrorPercent(theoretical, actual float64) float64 {
	if actual == 0 {
		return 0
	}
	return math.Abs(theoretical-actual) / math.Abs(actual) * 100
}

// AltitudeValidation compares theoretical heights with the recorded apogee and
// the recorded altitude with the one derived from pressure.
type AltitudeValidation struct {
	RealApogee float64
	ApogeeTime float64
	AscentTime float64
	TotalTime  float64

	// Littlewood with twice the ascent time, i.e. the ballistic flight
	// the rocket would have made without a parachute.
	Ballistic      float64
	BallisticError float64
	// Littlewood with the recorded flight time.
	FromTotal      float64
	FromTotalError float64

	Time        []float64
	Recorded    []float64
	Barometric  []float64
	RMSE        float64
	MaxAbsDiff  float64
	BaroApogee  float64
	ReferenceP0 float64
}

// ValidateAltitude needs altitude; the barometric comparison also needs pressure.
func ValidateAltitude(f *telemetry.Flight, g float64) (*AltitudeValidation, error) {
	alt := f.Column(telemetry.ColAltitude)
	apogee, err := Apogee(alt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	times := f.Times()

	v := &AltitudeValidation{
		RealApogee: alt[apogee],
		ApogeeTime: times[apogee],
		TotalTime:  f.Duration(),
		Time:       times,
		Recorded:   alt,
	}

	launchTime := times[0]
	if phases, err := Phases(f); err == nil {
		for _, ph := range phases {
			if ph.Name == PhaseAscent {
				launchTime = ph.StartTime
			}
		}
	}
	v.AscentTime = v.ApogeeTime - launchTime
	v.Ballistic = LittlewoodHeight(2*v.AscentTime, g)
	v.BallisticError = ErrorPercent(v.Ballistic, v.RealApogee)
	v.FromTotal = LittlewoodHeight(v.TotalTime, g)
	v.FromTotalError = ErrorPercent(v.FromTotal, v.RealApogee)

	v.BaroApogee, v.RMSE, v.MaxAbsDiff, v.ReferenceP0 = math.NaN(), math.NaN(), math.NaN(), math.NaN()
	if !f.Has(telemetry.ColPressure) {
		return v, nil
	}

	pressure := f.Column(telemetry.ColPressure)
	v.ReferenceP0 = Median(pressure[:min(5, len(pressure))])
	groundAlt := Median(alt[:min(5, len(alt))])
	v.Barometric = make([]float64, len(pressure))
	var se float64
	var n int
	v.MaxAbsDiff = 0
	for i, p := range pressure {
		v.Barometric[i] = BarometricAltitude(p, v.ReferenceP0) + groundAlt
		if math.IsNaN(alt[i]) {
			continue
		}
		d := v.Barometric[i] - alt[i]
		se += d * d
		n++
		v.MaxAbsDiff = math.Max(v.MaxAbsDiff, math.Abs(d))
	}
	if n > 0 {
		v.RMSE = math.Sqrt(se / float64(n))
	}
	v.BaroApogee = NanMax(v.Barometric)
	return v, nil
}
