package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/swelljoe/rocketdash/internal/telemetry"
)

// ISA troposphere constants for P = P0·(1 - k·h)^e.
const (
	isaK        = 2.25577e-5
	isaExponent = 5.25588
)

// ISAPressure is the standard-atmosphere pressure h metres above a level
// whose pressure is p0.
func ISAPressure(p0, h float64) float64 {
	return p0 * math.Pow(1-isaK*h, isaExponent)
}

// BarometricAltitude inverts ISAPressure: height above the p0 level.
func BarometricAltitude(p, p0 float64) float64 {
	return (1 - math.Pow(p/p0, 1/isaExponent)) / isaK
}

// LinearFit is y = Intercept + Slope·x.
type LinearFit struct {
	Intercept float64
	Slope     float64
	R2        float64
	N         int
}

// ErrDegenerateFit is returned when x has no spread.
var ErrDegenerateFit = errors.New("analysis: not enough distinct points to fit")

// FitLinear is ordinary least squares over the pairs where neither value is NaN.
func FitLinear(x, y []float64) (LinearFit, error) {
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 || stat.Variance(xs, nil) == 0 {
		return LinearFit{}, ErrDegenerateFit
	}

	fit := LinearFit{N: len(xs)}
	fit.Intercept, fit.Slope = stat.LinearRegression(xs, ys, nil, false)
	fit.R2 = 1
	if stat.Variance(ys, nil) > 0 {
		fit.R2 = stat.RSquared(xs, ys, nil, fit.Intercept, fit.Slope)
	}
	return fit, nil
}

// At evaluates the fit.
func (f LinearFit) At(x float64) float64 { return f.Intercept + f.Slope*x }

// CurvePoint is one point of the fitted and standard curves.
type CurvePoint struct {
	Altitude float64
	Fitted   float64
	ISA      float64
}

// Barometric compares measured pressure against an exponential fit and
// the ISA model.
type Barometric struct {
	Altitude    []float64
	Pressure    []float64
	P0          float64 // fitted pressure at altitude 0, Pa
	ScaleHeight float64 // metres per e-fold of pressure
	R2          float64
	RMSEFit     float64
	RMSEISA     float64
	Curve       []CurvePoint
}

// FitBarometric fits ln(P) = a + b·h over the flight's samples.
func FitBarometric(f *telemetry.Flight) (*Barometric, error) {
	if !f.Has(telemetry.ColPressure) || !f.Has(telemetry.ColAltitude) {
		return nil, fmt.Errorf("%s: pressure_pa and altitude_m are required", f.Name)
	}

	b := &Barometric{}
	var logP []float64
	for _, s := range f.Samples {
		if math.IsNaN(s.Altitude) || s.Pressure <= 0 {
			continue
		}
		b.Altitude = append(b.Altitude, s.Altitude)
		b.Pressure = append(b.Pressure, s.Pressure)
		logP = append(logP, math.Log(s.Pressure))
	}

	fit, err := FitLinear(b.Altitude, logP)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	b.P0 = math.Exp(fit.Intercept)
	b.R2 = fit.R2
	b.ScaleHeight = math.NaN()
	if fit.Slope < 0 {
		b.ScaleHeight = -1 / fit.Slope
	}

	var seFit, seISA float64
	for i, h := range b.Altitude {
		pf := math.Exp(fit.At(h))
		pi := ISAPressure(b.P0, h)
		seFit += (b.Pressure[i] - pf) * (b.Pressure[i] - pf)
		seISA += (b.Pressure[i] - pi) * (b.Pressure[i] - pi)
	}
	n := float64(len(b.Altitude))
	b.RMSEFit = math.Sqrt(seFit / n)
	b.RMSEISA = math.Sqrt(seISA / n)

	lo, hi := NanMin(b.Altitude), NanMax(b.Altitude)
	const points = 50
	for i := 0; i < points; i++ {
		h := lo + (hi-lo)*float64(i)/float64(points-1)
		b.Curve = append(b.Curve, CurvePoint{
			Altitude: h,
			Fitted:   math.Exp(fit.At(h)),
			ISA:      ISAPressure(b.P0, h),
		})
	}
	return b, nil
}
