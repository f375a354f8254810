package analysis

import (
	"fmt"

	"github.com/swelljoe/rocketdash/internal/telemetry"
)

// Deployment window after apogee, in seconds.
const (
	deployWindowStart = 0.3
	deployWindowEnd   = 2.0
)

// Deployment is the sample where the parachute is judged fully open.
type Deployment struct {
	Index    int
	Time     float64
	Altitude float64
	Pressure float64
}

// Parachute holds the derived series and the detection result for one flight.
type Parachute struct {
	Time         []float64
	Pressure     []float64
	Altitude     []float64
	Rate         []float64 // Pa/s
	SmoothedRate []float64 // centered 5-sample mean of Rate
	Apogee       int
	Deployment   *Deployment
}

// ParachuteStats is the table shown on the parachute page.
type ParachuteStats struct {
	ApogeeAltitude     string
	ApogeeTime         string
	DeploymentTime     string
	DeploymentAltitude string
	Confirmed          string
}

// Apogee returns the index of the highest altitude sample.
func Apogee(altitude []float64) (int, error) {
	i := ArgMax(altitude)
	if i < 0 {
		return -1, ErrNoAltitude
	}
	return i, nil
}

// AnalyzeParachute computes the pressure rate and detects the passive
// parachute opening shortly after apogee.
func AnalyzeParachute(f *telemetry.Flight) (*Parachute, error) {
	if len(f.Samples) == 0 {
		return nil, fmt.Errorf("%s: no samples", f.Name)
	}
	if !f.Has(telemetry.ColPressure) {
		return nil, fmt.Errorf("%s: missing pressure_pa column", f.Name)
	}

	p := &Parachute{
		Time:     f.Column(telemetry.ColTime),
		Pressure: f.Column(telemetry.ColPressure),
		Altitude: f.Column(telemetry.ColAltitude),
	}
	p.Rate = Rate(p.Time, p.Pressure)
	p.SmoothedRate = RollingMean(p.Rate, 5, true)

	apogee, err := Apogee(p.Altitude)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	p.Apogee = apogee
	p.Deployment = p.detectDeployment()
	return p, nil
}

func (p *Parachute) at(i int) *Deployment {
	return &Deployment{
		Index:    i,
		Time:     p.Time[i],
		Altitude: p.Altitude[i],
		Pressure: p.Pressure[i],
	}
}

func (p *Parachute) detectDeployment() *Deployment {
	n := len(p.Time)
	tApogee := p.Time[p.Apogee]

	var window, after []int
	for i, t := range p.Time {
		if t >= tApogee+deployWindowStart && t <= tApogee+deployWindowEnd {
			window = append(window, i)
		}
		if t > tApogee {
			after = append(after, i)
		}
	}
	if len(after) == 0 {
		return nil
	}

	if len(window) < 5 {
		idx := p.Apogee + 3
		if len(after) >= 5 {
			idx = after[4]
		}
		if idx >= n {
			idx = p.Apogee + 1
		}
		if idx >= n {
			idx = n - 1
		}
		return p.at(idx)
	}

	// The rate settles once the canopy is fully open.
	rates := make([]float64, len(window))
	for j, i := range window {
		rates[j] = p.SmoothedRate[i]
	}
	variation := RollingStd(FillNaN(rates, 0), 3)
	if j := ArgMin(variation); j >= 0 {
		return p.at(window[j])
	}
	return p.at(window[len(window)/2])
}

// Stats formats the apogee and deployment for display.
func (p *Parachute) Stats() ParachuteStats {
	s := ParachuteStats{
		ApogeeAltitude: fmt.Sprintf("%.2f", p.Altitude[p.Apogee]),
		ApogeeTime:     fmt.Sprintf("%.2f", p.Time[p.Apogee]),
	}
	if p.Deployment != nil {
		s.DeploymentTime = fmt.Sprintf("%.2f", p.Deployment.Time)
		s.DeploymentAltitude = fmt.Sprintf("%.2f", p.Deployment.Altitude)
		s.Confirmed = "Sí"
	} else {
		s.DeploymentTime = "No detectado"
		s.DeploymentAltitude = "N/A"
		s.Confirmed = "No"
	}
	return s
}
