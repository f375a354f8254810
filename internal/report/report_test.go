package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swelljoe/rocketdash/internal/analysis"
)

func sampleParachute() *analysis.Parachute {
	nan := math.NaN()
	return &analysis.Parachute{
		Time:         []float64{0, 1, 2, 3, 4},
		Pressure:     []float64{82000, 81900, 81880, 81950, 82000},
		Altitude:     []float64{0, 8, 10, 4, 0},
		Rate:         []float64{nan, -100, -20, 70, 50},
		SmoothedRate: []float64{nan, nan, nan, nan, nan},
		Apogee:       2,
		Deployment:   &analysis.Deployment{Index: 3, Time: 3, Altitude: 4, Pressure: 81950},
	}
}

func TestParachutePDF(t *testing.T) {
	var buf bytes.Buffer
	err := Parachute(&buf, "1", "lanzamiento_1.csv", sampleParachute(), time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")), "not a PDF")
	assert.Greater(t, buf.Len(), 500)
}

func TestParachutePDFWithoutDeployment(t *testing.T) {
	p := sampleParachute()
	p.Deployment = nil
	p.Pressure = []float64{1, 1, 1, 1, 1}

	var buf bytes.Buffer
	require.NoError(t, Parachute(&buf, "2", "x.csv", p, time.Now()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestPressureChart(t *testing.T) {
	img, err := PressureChart(sampleParachute())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG\r\n\x1a\n")), "not a PNG")

	p := sampleParachute()
	p.Pressure = []float64{math.NaN(), math.NaN(), 81880, math.NaN(), math.NaN()}
	img, err = PressureChart(p)
	require.NoError(t, err)
	assert.Nil(t, img, "a single point is not plotted")
}

func TestParachutePDFEmbedsChart(t *testing.T) {
	var withChart, without bytes.Buffer
	require.NoError(t, Parachute(&withChart, "1", "a.csv", sampleParachute(), time.Now()))

	p := sampleParachute()
	p.Pressure = []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}
	require.NoError(t, Parachute(&without, "1", "a.csv", p, time.Now()))

	assert.Contains(t, withChart.String(), "/Subtype /Image")
	assert.NotContains(t, without.String(), "/Subtype /Image")
}

func TestParachuteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ParachuteCSV(&buf, sampleParachute()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, CSVHeader, records[0])
	assert.Equal(t, []string{"0", "82000", "0", "", "", ""}, records[1])
	assert.Equal(t, "apogeo", records[3][5])
	assert.Equal(t, "despliegue", records[4][5])
	assert.Equal(t, "-100", records[2][3])
}
