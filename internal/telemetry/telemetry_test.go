package telemetry

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `timestamp_ms,time_s,pressure_pa,altitude_m,temperature_c
timestamp_ms,time_s,pressure_pa,altitude_m,temperature_c
1000,0.00,82110.0,0.0,21.5
1050,0.05,82100.0,0.9,21.5
1100,0.10,,1.8,21.4
1150,bad,82080.0,2.7,21.4
1200,0.20,"82070,5",3.6,21.3
`

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	// duplicate header, missing pressure and bad time rows are dropped
	require.Len(t, f.Samples, 3)
	assert.Equal(t, 0.2, f.Samples[2].Time)
	assert.Equal(t, 82070.5, f.Samples[2].Pressure)
	assert.Equal(t, 1200.0, f.Samples[2].TimestampMS)

	assert.True(t, f.Has(ColTemperature))
	assert.False(t, f.Has(ColAccelZ))
	assert.True(t, math.IsNaN(f.Samples[0].AccelZ))
	assert.Equal(t, 0.2, f.Duration())
}

func TestParseAliasesAndCase(t *testing.T) {
	in := "Time_s,Pressure_Pa,Temp_C,AccelZ,Velocity,Altitude_m\n0,100,20,1.5,0,0\n1,99,21,9.8,4.2,3\n"
	f, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, f.Samples, 2)

	assert.Equal(t, []float64{20, 21}, f.Column(ColTemperature))
	assert.Equal(t, []float64{1.5, 9.8}, f.Column(ColAccelZ))
	assert.Equal(t, []float64{0, 4.2}, f.Column(ColVelocity))
}

func TestParseWithoutPressureColumnKeepsRows(t *testing.T) {
	f, err := Parse(strings.NewReader("time_s,altitude_m\n0,0\n1,5\n2,3\n"))
	require.NoError(t, err)
	assert.Len(t, f.Samples, 3)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("pressure_pa,altitude_m\n1,2\n"))
	assert.True(t, errors.Is(err, ErrNoTime))
}

func TestCleanValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.5", 1.5},
		{" 2,25 ", 2.25},
		{"-3", -3},
		{"1e3", 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanValue(tt.in), tt.in)
	}
	for _, bad := range []string{"", "  ", "abc", "1.2.3"} {
		assert.True(t, math.IsNaN(CleanValue(bad)), bad)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestListCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", sampleCSV)
	writeFile(t, dir, "a.CSV", sampleCSV)
	writeFile(t, dir, "notes.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	names, err := ListCSV(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.CSV", "b.csv"}, names)

	_, err = ListCSV(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestLoadFileNamesFlight(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lanzamiento_9.csv", sampleCSV)
	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "lanzamiento_9.csv", f.Name)
	assert.Equal(t, path, f.Path)

	bad := writeFile(t, t.TempDir(), "bad.csv", "foo,bar\n1,2\n")
	_, err = LoadFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv")
}

func TestCacheReusesUntilFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.csv", sampleCSV)
	c := NewCache()

	first, err := c.Load(path)
	require.NoError(t, err)
	second, err := c.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, os.WriteFile(path, []byte("time_s,pressure_pa\n0,1\n"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	third, err := c.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Len(t, third.Samples, 1)

	c.Invalidate(path)
	assert.Equal(t, 0, c.Len())
}

func TestCacheLoadAll(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", sampleCSV)
	b := writeFile(t, dir, "b.csv", "nope\n")
	c := writeFile(t, dir, "c.csv", sampleCSV)
	missing := filepath.Join(dir, "missing.csv")

	flights, failed := NewCache().LoadAll(context.Background(), []string{a, b, c, missing})
	require.Len(t, flights, 2)
	assert.Equal(t, "a.csv", flights[0].Name)
	assert.Equal(t, "c.csv", flights[1].Name)
	assert.Len(t, failed, 2)
	assert.Contains(t, failed, b)
	assert.Contains(t, failed, missing)
}

func TestWriteNormalisesHeader(t *testing.T) {
	in := "TIME_S,Temp_C,Accel_Z,junk\n0,\"21,5\",9.8,x\n0.05,,10.1,y\n"
	f, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, Write(&out, f))
	assert.Equal(t, "time_s,temperature_c,accelz\n0,21.5,9.8\n0.05,,10.1\n", out.String())

	again, err := Parse(strings.NewReader(out.String()))
	require.NoError(t, err)
	assert.Len(t, again.Samples, 2)
	assert.True(t, math.IsNaN(again.Samples[1].Temperature))
}
