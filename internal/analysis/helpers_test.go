package analysis

import (
	"math"

	"github.com/swelljoe/rocketdash/internal/telemetry"
)

// newFlight builds a flight from parallel columns; a nil column is absent.
func newFlight(times, pressure, altitude, temperature []float64) *telemetry.Flight {
	f := &telemetry.Flight{
		Name:    "test.csv",
		Columns: map[string]bool{telemetry.ColTime: true},
	}
	if pressure != nil {
		f.Columns[telemetry.ColPressure] = true
	}
	if altitude != nil {
		f.Columns[telemetry.ColAltitude] = true
	}
	if temperature != nil {
		f.Columns[telemetry.ColTemperature] = true
	}
	n := math.NaN()
	for i, t := range times {
		s := telemetry.Sample{TimestampMS: n, Time: t, Pressure: n, Altitude: n, Temperature: n, AccelZ: n, Velocity: n}
		if pressure != nil {
			s.Pressure = pressure[i]
		}
		if altitude != nil {
			s.Altitude = altitude[i]
		}
		if temperature != nil {
			s.Temperature = temperature[i]
		}
		f.Samples = append(f.Samples, s)
	}
	return f
}

// rocketFlight is a noiseless water rocket: rest, parabolic ascent to 20 m
// at t=1.2 s, free fall for 0.5 s then a steady 3 m/s parachute descent.
func rocketFlight() *telemetry.Flight {
	const (
		dt      = 0.05
		p0      = 82000.0
		apogeeT = 1.2
		apogeeH = 20.0
	)
	var times, pressure, alt, temp []float64
	landed := -1.0
	for i := 0; ; i++ {
		t := math.Round(float64(i)*dt*100) / 100
		var h float64
		switch {
		case t < 0.2:
			h = 0
		case t <= apogeeT:
			x := (t - 0.2) / (apogeeT - 0.2)
			h = apogeeH * (1 - (1-x)*(1-x))
		default:
			td := t - apogeeT
			if td < 0.5 {
				h = apogeeH - 0.5*9.78*td*td*0.6
			} else {
				h = apogeeH - 0.5*9.78*0.25*0.6 - 3*(td-0.5)
			}
		}
		if h <= 0 && t > apogeeT {
			h = 0
			if landed < 0 {
				landed = t
			}
		}
		if landed >= 0 && t > landed+1 {
			break
		}
		times = append(times, t)
		alt = append(alt, h)
		pressure = append(pressure, ISAPressure(p0, h))
		temp = append(temp, 22-0.0065*h)
	}
	return newFlight(times, pressure, alt, temp)
}
