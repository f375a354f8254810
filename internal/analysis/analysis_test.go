package analysis

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAirDensity(t *testing.T) {
	assert.InDelta(t, 1.225, AirDensity(101325, 15), 1e-3)
	// thinner and warmer air in Popayán
	assert.InDelta(t, 0.966, AirDensity(82000, 22.6), 1e-3)
}

func TestAnalyzeDensity(t *testing.T) {
	d, err := AnalyzeDensity(rocketFlight())
	require.NoError(t, err)

	assert.False(t, d.UsedISA)
	assert.Equal(t, len(d.Time), d.Recorded)
	assert.Less(t, d.Apogee, d.Ground, "air is thinner at apogee")
	assert.Less(t, d.Change, 0.0)
	assert.Equal(t, d.Max, d.Ground)
	assert.LessOrEqual(t, d.Min, d.Apogee)
}

func TestAnalyzeDensityFallsBackToISA(t *testing.T) {
	f := newFlight([]float64{0, 1}, []float64{101325, 101000}, []float64{0, 27}, nil)
	d, err := AnalyzeDensity(f)
	require.NoError(t, err)
	assert.True(t, d.UsedISA)
	assert.Equal(t, 0, d.Recorded)
	assert.InDelta(t, 1.225, d.Rho[0], 1e-3)
}

func TestDetectAnomalies(t *testing.T) {
	times := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 1.5, 1.6, 1.55, 1.7}
	pres := []float64{1000, 1000, 1000, 1000, 1000, 3000, 1000, 1000, 1000, 1000, 1000, 1000}
	alt := []float64{0, 0, 0, 0, 0, 0, -5, 0, 0, 0, 0, 0}
	temp := []float64{20, 20, 20, 20, 20, 20, 20, 25, 25, 25, 25, nan()}

	res := DetectAnomalies(newFlight(times, pres, alt, temp), DefaultThresholds)
	require.Equal(t, len(times), res.Samples)

	type flag struct {
		Index int
		Kind  AnomalyKind
	}
	var got []flag
	for _, a := range res.Anomalies {
		got = append(got, flag{a.Index, a.Kind})
	}
	want := []flag{
		{5, PressureSpike},
		{6, NegativeAltitude},
		{7, TemperatureJump},
		{8, TimeGap},
		{10, TimeReversal},
		{11, MissingValue},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("anomalies mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, res.Counts, 6)
	for _, c := range res.Counts {
		assert.Equal(t, 1, c.Count)
		assert.NotEmpty(t, c.Kind.Label())
		assert.NotEmpty(t, c.Kind.Cause())
	}
}

func TestDetectAnomaliesCleanFlight(t *testing.T) {
	res := DetectAnomalies(rocketFlight(), DefaultThresholds)
	assert.Empty(t, res.Anomalies)
	assert.Empty(t, res.Counts)
}

func TestISARoundTrip(t *testing.T) {
	for _, h := range []float64{0, 10, 250, 1760} {
		p := ISAPressure(101325, h)
		assert.InDelta(t, h, BarometricAltitude(p, 101325), 1e-6)
	}
	// roughly 12 Pa per metre near sea level
	assert.InDelta(t, 101325-12.0, ISAPressure(101325, 1), 0.5)
}

func TestFitLinear(t *testing.T) {
	fit, err := FitLinear([]float64{0, 1, 2, nan(), 3}, []float64{1, 3, 5, 100, 7})
	require.NoError(t, err)
	assert.InDelta(t, 1, fit.Intercept, 1e-12)
	assert.InDelta(t, 2, fit.Slope, 1e-12)
	assert.InDelta(t, 1, fit.R2, 1e-12)
	assert.Equal(t, 4, fit.N)
	assert.Equal(t, 9.0, fit.At(4))

	_, err = FitLinear([]float64{1, 1}, []float64{2, 3})
	assert.ErrorIs(t, err, ErrDegenerateFit)
	_, err = FitLinear([]float64{1}, []float64{2})
	assert.ErrorIs(t, err, ErrDegenerateFit)
}

func TestFitLinearNoisy(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	y := []float64{2.1, 2.9, 5.2, 7.1, 8.8, 11.2, 12.9, 15.1}
	fit, err := FitLinear(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.466666666667, fit.Intercept, 1e-9)
	assert.InDelta(t, 1.913095238095, fit.Slope, 1e-9)
	assert.InDelta(t, 0.994555160293, fit.R2, 1e-9)

	flat, err := FitLinear(x, []float64{3, 3, 3, 3, 3, 3, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, 1.0, flat.R2, "a constant y is fitted exactly")
}

func TestFitBarometric(t *testing.T) {
	b, err := FitBarometric(rocketFlight())
	require.NoError(t, err)

	assert.InDelta(t, 82000, b.P0, 1)
	assert.Greater(t, b.R2, 0.999)
	// scale height of the lower troposphere is about 8 km
	assert.InDelta(t, 8400, b.ScaleHeight, 600)
	assert.Less(t, b.RMSEISA, 1.0)
	require.Len(t, b.Curve, 50)
	assert.InDelta(t, 0, b.Curve[0].Altitude, 1e-9)
	assert.InDelta(t, 20, b.Curve[49].Altitude, 1e-9)

	_, err = FitBarometric(newFlight([]float64{0}, []float64{1}, nil, nil))
	assert.Error(t, err)
}

func TestPhases(t *testing.T) {
	phases, err := Phases(rocketFlight())
	require.NoError(t, err)

	var names []string
	for _, p := range phases {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{PhasePreLaunch, PhaseAscent, PhaseApogee, PhaseDescent, PhaseLanded}, names)

	// contiguous and covering
	for i := 1; i < len(phases); i++ {
		assert.Equal(t, phases[i-1].End+1, phases[i].Start)
	}
	assert.Equal(t, 0, phases[0].Start)
	assert.InDelta(t, 1.2, phases[2].StartTime, 1e-9)
	assert.Less(t, phases[1].StartTime, 0.3)
	assert.Greater(t, phases[4].StartTime, 6.0)
}

func TestDeriveAndPropulsion(t *testing.T) {
	f := rocketFlight()
	p, err := AnalyzePropulsion(f)
	require.NoError(t, err)

	// h = 20(1-(1-x)²) starts at 40 m/s; smoothing the kink at launch
	// leaves a peak of about 34 m/s
	assert.InDelta(t, 34, p.MaxSpeed, 2)
	assert.Less(t, p.MaxSpeedTime, 0.5)
	assert.True(t, math.IsNaN(p.SensorMaxAccZ))

	l, err := AnalyzeLoads(f)
	require.NoError(t, err)
	assert.Greater(t, l.MaxLoad, 1.0)
	assert.Less(t, l.MinLoad, 1.0)
	assert.False(t, math.IsNaN(l.Landing))
}

func TestDeriveNeedsAltitude(t *testing.T) {
	_, err := Derive(newFlight([]float64{0, 1, 2}, []float64{1, 2, 3}, nil, nil))
	assert.Error(t, err)
	_, err = Derive(newFlight([]float64{0, 1}, nil, []float64{1, 2}, nil))
	assert.Error(t, err)
}

func TestLittlewood(t *testing.T) {
	assert.InDelta(t, 4.89, LittlewoodHeight(2, 9.78), 1e-9)
	assert.InDelta(t, 10, ErrorPercent(22, 20), 1e-9)
	assert.Equal(t, 0.0, ErrorPercent(5, 0))
}

func TestValidateAltitude(t *testing.T) {
	v, err := ValidateAltitude(rocketFlight(), 9.78)
	require.NoError(t, err)

	assert.InDelta(t, 20, v.RealApogee, 1e-9)
	assert.InDelta(t, LittlewoodHeight(2*v.AscentTime, 9.78), v.Ballistic, 1e-9)
	assert.Greater(t, v.FromTotal, v.Ballistic, "parachute stretches the flight")
	// pressure is generated from the same ISA model
	assert.Less(t, v.RMSE, 1e-3)
	assert.InDelta(t, 20, v.BaroApogee, 1e-3)
}

func TestSummarizeAndRank(t *testing.T) {
	s := Summarize(rocketFlight(), 9.78)
	assert.InDelta(t, 20, s.Apogee, 1e-9)
	assert.False(t, math.IsNaN(s.DeploymentAltitude))
	assert.False(t, math.IsNaN(s.MaxSpeed))

	empty := Summarize(newFlight([]float64{0}, []float64{1}, nil, nil), 9.78)
	assert.True(t, math.IsNaN(empty.Apogee))

	ranked := Rank([]Summary{
		{Name: "a", Apogee: 10},
		empty,
		{Name: "b", Apogee: 30},
		{Name: "c", Apogee: 20},
	})
	var names []string
	for _, r := range ranked {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"b", "c", "a", "test.csv"}, names)
}
