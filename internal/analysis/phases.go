package analysis

import (
	"fmt"
	"math"

	"github.com/swelljoe/rocketdash/internal/telemetry"
)

// Phase names.
const (
	PhasePreLaunch = "Espera en rampa"
	PhaseAscent    = "Ascenso"
	PhaseApogee    = "Apogeo"
	PhaseDescent   = "Descenso"
	PhaseLanded    = "En tierra"
)

// groundBand is how close to the ground level a sample must stay to count
// as "on the ground", in metres.
const groundBand = 1.0

// Phase is a contiguous range of samples [Start, End].
type Phase struct {
	Name          string
	Start, End    int
	StartTime     float64
	EndTime       float64
	Duration      float64
	AltitudeStart float64
	AltitudeEnd   float64
}

// Phases segments a flight into pre-launch, ascent, apogee, descent and landed.
func Phases(f *telemetry.Flight) ([]Phase, error) {
	alt := f.Column(telemetry.ColAltitude)
	apogee, err := Apogee(alt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	n := len(alt)
	times := f.Times()

	startLevel := Median(alt[:min(5, n)])
	launch := 0
	for i := 0; i < apogee; i++ {
		if !math.IsNaN(alt[i]) && alt[i] > startLevel+groundBand {
			launch = i
			break
		}
	}
	// step back to the last sample still at rest
	if launch > 0 {
		launch--
	}

	endLevel := Median(alt[max(apogee+1, n-10):])
	landing := n
	if !math.IsNaN(endLevel) {
		for i := n - 1; i > apogee; i-- {
			if math.IsNaN(alt[i]) || math.Abs(alt[i]-endLevel) > groundBand {
				break
			}
			landing = i
		}
	}

	var phases []Phase
	add := func(name string, start, end int) {
		if start > end || start < 0 || end >= n {
			return
		}
		phases = append(phases, Phase{
			Name:          name,
			Start:         start,
			End:           end,
			StartTime:     times[start],
			EndTime:       times[end],
			Duration:      times[end] - times[start],
			AltitudeStart: alt[start],
			AltitudeEnd:   alt[end],
		})
	}
	add(PhasePreLaunch, 0, launch-1)
	add(PhaseAscent, launch, apogee-1)
	add(PhaseApogee, apogee, apogee)
	add(PhaseDescent, apogee+1, landing-1)
	add(PhaseLanded, landing, n-1)
	return phases, nil
}
