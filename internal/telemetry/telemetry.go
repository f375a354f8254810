// Package telemetry reads flight logger CSV files.
package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Column names after alias resolution.
const (
	ColTimestampMS = "timestamp_ms"
	ColTime        = "time_s"
	ColPressure    = "pressure_pa"
	ColAltitude    = "altitude_m"
	ColTemperature = "temperature_c"
	ColAccelZ      = "accelz"
	ColVelocity    = "velocity_m_s"
)

var aliases = map[string]string{
	"timestamp_ms":  ColTimestampMS,
	"time_s":        ColTime,
	"pressure_pa":   ColPressure,
	"altitude_m":    ColAltitude,
	"temperature_c": ColTemperature,
	"temp_c":        ColTemperature,
	"temperature":   ColTemperature,
	"accelz":        ColAccelZ,
	"accel_z":       ColAccelZ,
	"velocity_m_s":  ColVelocity,
	"velocity":      ColVelocity,
}

// ErrNoTime is returned for files without a time_s column.
var ErrNoTime = errors.New("telemetry: missing time_s column")

// Sample is one logger row. Missing values are NaN.
type Sample struct {
	TimestampMS float64
	Time        float64
	Pressure    float64
	Altitude    float64
	Temperature float64
	AccelZ      float64
	Velocity    float64
}

// Flight is a parsed CSV file.
type Flight struct {
	Name    string
	Path    string
	Samples []Sample
	Columns map[string]bool
}

// Has reports whether the file carried the named column.
func (f *Flight) Has(col string) bool {
	return f.Columns[col]
}

// Column extracts one column as a slice.
func (f *Flight) Column(col string) []float64 {
	out := make([]float64, len(f.Samples))
	for i, s := range f.Samples {
		out[i] = s.value(col)
	}
	return out
}

// Times is shorthand for Column(ColTime).
func (f *Flight) Times() []float64 { return f.Column(ColTime) }

// Duration is the time of the last sample.
func (f *Flight) Duration() float64 {
	if len(f.Samples) == 0 {
		return 0
	}
	return f.Samples[len(f.Samples)-1].Time
}

func (s Sample) value(col string) float64 {
	switch col {
	case ColTimestampMS:
		return s.TimestampMS
	case ColTime:
		return s.Time
	case ColPressure:
		return s.Pressure
	case ColAltitude:
		return s.Altitude
	case ColTemperature:
		return s.Temperature
	case ColAccelZ:
		return s.AccelZ
	case ColVelocity:
		return s.Velocity
	}
	return math.NaN()
}

func (s *Sample) set(col string, v float64) {
	switch col {
	case ColTimestampMS:
		s.TimestampMS = v
	case ColTime:
		s.Time = v
	case ColPressure:
		s.Pressure = v
	case ColAltitude:
		s.Altitude = v
	case ColTemperature:
		s.Temperature = v
	case ColAccelZ:
		s.AccelZ = v
	case ColVelocity:
		s.Velocity = v
	}
}

func nanSample() Sample {
	n := math.NaN()
	return Sample{n, n, n, n, n, n, n}
}

// CleanValue converts a logger field to a float, accepting a decimal comma.
// Anything unparseable becomes NaN.
func CleanValue(v string) float64 {
	v = strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
	if v == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Parse reads a CSV with a header row. Rows whose time is missing, or whose
// pressure is missing in a file that has a pressure column, are dropped. A
// header repeated inside the data is skipped.
func Parse(r io.Reader) (*Flight, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("telemetry: empty file")
		}
		return nil, fmt.Errorf("telemetry: failed to read header: %w", err)
	}

	cols := make([]string, len(header))
	flight := &Flight{Columns: make(map[string]bool)}
	for i, h := range header {
		if canonical, ok := aliases[headerName(h)]; ok {
			cols[i] = canonical
			flight.Columns[canonical] = true
		}
	}
	if !flight.Columns[ColTime] {
		return nil, ErrNoTime
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("telemetry: line %d: %w", line, err)
		}
		if isHeader(record, header) {
			continue
		}

		s := nanSample()
		for i, field := range record {
			if i >= len(cols) || cols[i] == "" {
				continue
			}
			s.set(cols[i], CleanValue(field))
		}
		if math.IsNaN(s.Time) || (flight.Columns[ColPressure] && math.IsNaN(s.Pressure)) {
			continue
		}
		flight.Samples = append(flight.Samples, s)
	}

	return flight, nil
}

func isHeader(record, header []string) bool {
	if len(record) == 0 || len(record) != len(header) {
		return false
	}
	for i := range record {
		if headerName(record[i]) != headerName(header[i]) {
			return false
		}
	}
	return true
}

func headerName(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// LoadFile parses the CSV at path.
func LoadFile(path string) (*Flight, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	flight, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	flight.Path = path
	flight.Name = filepath.Base(path)
	return flight, nil
}

// ListCSV returns the sorted names of the .csv files in dir.
func ListCSV(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// columnOrder is the column order of written files.
var columnOrder = []string{ColTimestampMS, ColTime, ColPressure, ColAltitude, ColTemperature, ColAccelZ, ColVelocity}

// Write stores f as CSV with canonical column names. Only the columns f
// carries are written; NaN cells are left empty.
func Write(w io.Writer, f *Flight) error {
	var cols []string
	for _, c := range columnOrder {
		if f.Has(c) {
			cols = append(cols, c)
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	rec := make([]string, len(cols))
	for _, s := range f.Samples {
		for i, c := range cols {
			rec[i] = ""
			if v := s.value(c); !math.IsNaN(v) {
				rec[i] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
