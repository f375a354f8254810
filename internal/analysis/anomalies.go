package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/swelljoe/rocketdash/internal/telemetry"
)

// AnomalyKind classifies a flagged sample.
type AnomalyKind string

const (
	PressureSpike    AnomalyKind = "pressure_spike"
	TemperatureJump  AnomalyKind = "temperature_jump"
	NegativeAltitude AnomalyKind = "negative_altitude"
	TimeGap          AnomalyKind = "time_gap"
	TimeReversal     AnomalyKind = "time_reversal"
	MissingValue     AnomalyKind = "missing_value"
)

// Thresholds used by DetectAnomalies.
type Thresholds struct {
	SpikeSigma   float64 // robust sigmas (1.4826·MAD) for a pressure spike
	MinSpikePa   float64 // residuals below this are never spikes
	TempJumpC    float64
	MinAltitudeM float64
	GapFactor    float64 // multiple of the median sample interval
}

// DefaultThresholds are tuned for water rockets logging at 10-50 Hz.
var DefaultThresholds = Thresholds{
	SpikeSigma:   3,
	MinSpikePa:   50,
	TempJumpC:    2,
	MinAltitudeM: -2,
	GapFactor:    3,
}

var anomalyLabels = map[AnomalyKind]string{
	PressureSpike:    "Pico de presión",
	TemperatureJump:  "Salto de temperatura",
	NegativeAltitude: "Altitud negativa",
	TimeGap:          "Hueco en el tiempo",
	TimeReversal:     "Tiempo no creciente",
	MissingValue:     "Valor faltante",
}

var anomalyCauses = map[AnomalyKind]string{
	PressureSpike:    "Ráfaga de viento o chorro de agua sobre el sensor; el compartimento del barómetro no está ventilado.",
	TemperatureJump:  "Exposición directa al sol o al agua expulsada; el sensor no está aislado térmicamente.",
	NegativeAltitude: "Deriva de la presión de referencia tomada en tierra antes del lanzamiento.",
	TimeGap:          "Pérdida de muestras: buffer de escritura lleno o reinicio del microcontrolador.",
	TimeReversal:     "Reinicio del registrador o filas de varios vuelos mezcladas en un mismo archivo.",
	MissingValue:     "Lectura fallida del sensor o fila truncada en la tarjeta SD.",
}

// Label is the display name of the kind.
func (k AnomalyKind) Label() string { return anomalyLabels[k] }

// Cause is the most probable explanation for the kind.
func (k AnomalyKind) Cause() string { return anomalyCauses[k] }

// Anomaly is one flagged sample.
type Anomaly struct {
	Index  int
	Time   float64
	Kind   AnomalyKind
	Value  float64
	Detail string
}

// KindCount pairs a kind with how often it was flagged.
type KindCount struct {
	Kind  AnomalyKind
	Count int
}

// Anomalies is the result of DetectAnomalies.
type Anomalies struct {
	Samples   int
	Anomalies []Anomaly
	Counts    []KindCount // most frequent first
}

// DetectAnomalies applies simple thresholds to every sample.
func DetectAnomalies(f *telemetry.Flight, th Thresholds) *Anomalies {
	res := &Anomalies{Samples: len(f.Samples)}
	add := func(i int, kind AnomalyKind, value float64, detail string) {
		res.Anomalies = append(res.Anomalies, Anomaly{
			Index:  i,
			Time:   f.Samples[i].Time,
			Kind:   kind,
			Value:  value,
			Detail: detail,
		})
	}

	times := f.Times()
	dts := Diff(times)
	medianDT := Median(dts)

	var residuals []float64
	if f.Has(telemetry.ColPressure) {
		pressure := f.Column(telemetry.ColPressure)
		smooth := RollingMedian(pressure, 5)
		residuals = make([]float64, len(pressure))
		for i := range pressure {
			residuals[i] = math.Abs(pressure[i] - smooth[i])
		}
	}
	spikeLimit := th.MinSpikePa
	if sigma := 1.4826 * Median(residuals); !math.IsNaN(sigma) && th.SpikeSigma*sigma > spikeLimit {
		spikeLimit = th.SpikeSigma * sigma
	}

	for i, s := range f.Samples {
		if i > 0 {
			dt := dts[i]
			switch {
			case dt <= 0:
				add(i, TimeReversal, dt, fmt.Sprintf("Δt = %.3f s", dt))
			case medianDT > 0 && dt > th.GapFactor*medianDT:
				add(i, TimeGap, dt, fmt.Sprintf("Δt = %.3f s (mediana %.3f s)", dt, medianDT))
			}
		}

		if residuals != nil && !math.IsNaN(residuals[i]) && residuals[i] > spikeLimit {
			add(i, PressureSpike, s.Pressure, fmt.Sprintf("desvío de %.0f Pa sobre la mediana móvil", residuals[i]))
		}

		if f.Has(telemetry.ColTemperature) {
			if math.IsNaN(s.Temperature) {
				add(i, MissingValue, s.Temperature, "temperatura")
			} else if i > 0 && !math.IsNaN(f.Samples[i-1].Temperature) {
				if jump := s.Temperature - f.Samples[i-1].Temperature; math.Abs(jump) > th.TempJumpC {
					add(i, TemperatureJump, s.Temperature, fmt.Sprintf("%+.2f °C en una muestra", jump))
				}
			}
		}

		if f.Has(telemetry.ColAltitude) {
			if math.IsNaN(s.Altitude) {
				add(i, MissingValue, s.Altitude, "altitud")
			} else if s.Altitude < th.MinAltitudeM {
				add(i, NegativeAltitude, s.Altitude, fmt.Sprintf("%.2f m", s.Altitude))
			}
		}
	}

	counts := make(map[AnomalyKind]int)
	for _, a := range res.Anomalies {
		counts[a.Kind]++
	}
	for k, c := range counts {
		res.Counts = append(res.Counts, KindCount{Kind: k, Count: c})
	}
	sort.Slice(res.Counts, func(i, j int) bool {
		if res.Counts[i].Count != res.Counts[j].Count {
			return res.Counts[i].Count > res.Counts[j].Count
		}
		return res.Counts[i].Kind < res.Counts[j].Kind
	})
	return res
}
