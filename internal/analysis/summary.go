package analysis

import (
	"math"
	"sort"

	"github.com/swelljoe/rocketdash/internal/telemetry"
)

// Summary is the one-line description of a flight used by rankings and the
// flight catalog.
type Summary struct {
	Name               string
	Samples            int
	Apogee             float64
	ApogeeTime         float64
	Duration           float64
	MaxSpeed           float64
	DeploymentAltitude float64
	Littlewood         float64 // ballistic theoretical apogee
}

// Summarize never fails: values that cannot be derived are NaN.
func Summarize(f *telemetry.Flight, g float64) Summary {
	s := Summary{
		Name:               f.Name,
		Samples:            len(f.Samples),
		Duration:           f.Duration(),
		Apogee:             math.NaN(),
		ApogeeTime:         math.NaN(),
		MaxSpeed:           math.NaN(),
		DeploymentAltitude: math.NaN(),
		Littlewood:         math.NaN(),
	}
	if v, err := ValidateAltitude(f, g); err == nil {
		s.Apogee = v.RealApogee
		s.ApogeeTime = v.ApogeeTime
		s.Littlewood = v.Ballistic
	}
	if p, err := AnalyzePropulsion(f); err == nil {
		s.MaxSpeed = p.MaxSpeed
	}
	if p, err := AnalyzeParachute(f); err == nil && p.Deployment != nil {
		s.DeploymentAltitude = p.Deployment.Altitude
	}
	return s
}

// Rank orders summaries by apogee, highest first; flights without an apogee
// go last.
func Rank(summaries []Summary) []Summary {
	out := append([]Summary(nil), summaries...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Apogee, out[j].Apogee
		switch {
		case math.IsNaN(a):
			return false
		case math.IsNaN(b):
			return true
		}
		return a > b
	})
	return out
}
