package analysis

import (
	"fmt"
	"math"

	"github.com/swelljoe/rocketdash/internal/telemetry"
)

// Physical constants.
const (
	GasConstantDryAir = 287.05 // J/(kg·K)
	CelsiusToKelvin   = 273.15
	isaSeaLevelC      = 15.0
	isaLapseRate      = 0.0065 // K/m
)

// AirDensity is rho = P / (R·T) in kg/m³, with P in Pa and T in °C.
func AirDensity(pressurePa, tempC float64) float64 {
	return pressurePa / (GasConstantDryAir * (tempC + CelsiusToKelvin))
}

// Density summarises the air density along a flight.
type Density struct {
	Time     []float64
	Rho      []float64
	Mean     float64
	Min      float64
	Max      float64
	Ground   float64
	Apogee   float64
	Change   float64 // percent change from the ground to apogee
	UsedISA  bool    // temperature was estimated from the ISA lapse rate
	Recorded int     // samples with a measured temperature
}

// AnalyzeDensity computes the density for every sample. Samples without a
// temperature use the ISA temperature for the sample's altitude.
func AnalyzeDensity(f *telemetry.Flight) (*Density, error) {
	if !f.Has(telemetry.ColPressure) {
		return nil, fmt.Errorf("%s: missing pressure_pa column", f.Name)
	}
	if len(f.Samples) == 0 {
		return nil, fmt.Errorf("%s: no samples", f.Name)
	}

	d := &Density{
		Time: f.Times(),
		Rho:  make([]float64, len(f.Samples)),
	}
	for i, s := range f.Samples {
		temp := s.Temperature
		if math.IsNaN(temp) {
			alt := s.Altitude
			if math.IsNaN(alt) {
				alt = 0
			}
			temp = isaSeaLevelC - isaLapseRate*alt
			d.UsedISA = true
		} else {
			d.Recorded++
		}
		d.Rho[i] = AirDensity(s.Pressure, temp)
	}

	d.Mean = NanMean(d.Rho)
	d.Min = NanMin(d.Rho)
	d.Max = NanMax(d.Rho)
	d.Ground = d.Rho[0]
	d.Apogee = math.NaN()
	if apogee, err := Apogee(f.Column(telemetry.ColAltitude)); err == nil {
		d.Apogee = d.Rho[apogee]
		d.Change = (d.Apogee - d.Ground) / d.Ground * 100
	}
	return d, nil
}
