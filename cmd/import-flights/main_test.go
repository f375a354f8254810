package main

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swelljoe/rocketdash/internal/db"
	"github.com/swelljoe/rocketdash/internal/telemetry"
)

const rawFlight = "Time_S,Pressure_Pa,Altitude_m,Temp_C\n" +
	"0,82100,0,21\n" +
	"0.5,82050,4.2,21\n" +
	"1,82010,7.5,20.9\n" +
	"1.5,82030,5.8,20.9\n" +
	"2,82090,0.9,21\n"

type memCatalog struct{ flights []db.Flight }

func (m *memCatalog) UpsertFlight(f db.Flight) error {
	m.flights = append(m.flights, f)
	return nil
}

func newImporter(t *testing.T) (*importer, *memCatalog) {
	t.Helper()
	cat := &memCatalog{}
	return &importer{
		dataDir: filepath.Join(t.TempDir(), "data"),
		gravity: 9.78,
		catalog: cat,
		logger:  zap.NewNop(),
	}, cat
}

func TestImportDirectory(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "vuelo_a.csv"), []byte(rawFlight), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "roto.csv"), []byte("altitude_m\n1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notas.txt"), []byte("x"), 0644))

	imp, cat := newImporter(t)
	n, err := imp.run([]string{src})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	written, err := os.ReadFile(filepath.Join(imp.dataDir, "vuelo_a.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "time_s,pressure_pa,altitude_m,temperature_c\n")

	require.Len(t, cat.flights, 1)
	got := cat.flights[0]
	assert.Equal(t, "vuelo_a.csv", got.Name)
	assert.Equal(t, 5, got.Rows)
	assert.Equal(t, 2.0, got.Duration)
	assert.InDelta(t, 7.5, got.Apogee, 1e-9)
}

func TestImportZip(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "vuelos.zip")
	out, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for _, name := range []string{"sd/vuelo_b.csv", "sd/vuelo_c.CSV", "sd/LEEME.txt"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(rawFlight))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	imp, cat := newImporter(t)
	n, err := imp.run([]string{archive})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, cat.flights, 2)

	names, err := telemetry.ListCSV(imp.dataDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"vuelo_b.csv", "vuelo_c.CSV"}, names)
}

func TestImportSingleFileErrors(t *testing.T) {
	src := filepath.Join(t.TempDir(), "vacio.csv")
	require.NoError(t, os.WriteFile(src, nil, 0644))

	imp, _ := newImporter(t)
	_, err := imp.run([]string{src})
	assert.Error(t, err)

	_, err = imp.run([]string{filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
}

func TestImportWithoutCatalog(t *testing.T) {
	src := filepath.Join(t.TempDir(), "vuelo_d.csv")
	require.NoError(t, os.WriteFile(src, []byte(rawFlight), 0644))

	imp, _ := newImporter(t)
	imp.catalog = nil
	n, err := imp.run([]string{src})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, filepath.Join(imp.dataDir, "vuelo_d.csv"))
}
