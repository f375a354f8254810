package prediction

import (
	"fmt"
	"math"

	"github.com/swelljoe/rocketdash/internal/analysis"
	"github.com/swelljoe/rocketdash/internal/telemetry"
)

// Messages shown when the model cannot be trained.
const (
	MsgNoValidData   = "No se pudo entrenar el modelo. Faltan datos válidos."
	MsgNotEnoughData = "No hay suficientes datos para predicción."
	ModelNone        = "No aplicable"
)

// featureColumns are the candidate inputs, in the order they enter a row.
var featureColumns = []string{
	telemetry.ColPressure,
	telemetry.ColTemperature,
	telemetry.ColAccelZ,
	telemetry.ColVelocity,
	telemetry.ColTime,
}

// Features returns the feature row of f and the columns it was built from.
// ok is false when a feature is NaN or the flight has no altitude target.
func Features(f *telemetry.Flight) (row []float64, cols []string, target float64, ok bool) {
	for _, col := range featureColumns {
		if !f.Has(col) {
			continue
		}
		xs := f.Column(col)
		var v float64
		switch col {
		case telemetry.ColPressure:
			v = analysis.NanMean(xs) / 100
		case telemetry.ColTemperature:
			v = analysis.NanMean(xs)
		case telemetry.ColAccelZ, telemetry.ColVelocity:
			v = analysis.NanMax(xs)
		case telemetry.ColTime:
			v = math.NaN()
			if len(xs) > 0 {
				v = xs[len(xs)-1]
			}
		}
		row = append(row, v)
		cols = append(cols, col)
	}
	if len(row) == 0 || !f.Has(telemetry.ColAltitude) {
		return nil, nil, 0, false
	}
	for _, v := range row {
		if math.IsNaN(v) {
			return nil, nil, 0, false
		}
	}
	target = analysis.NanMax(f.Column(telemetry.ColAltitude))
	if math.IsNaN(target) {
		return nil, nil, 0, false
	}
	return row, cols, target, true
}

// Result is what the prediction pages render. Prediction is either a rounded
// height or one of the messages above.
type Result struct {
	Prediction any
	Flights    int
	Model      string
	Features   []string
	Table      []FlightRow
}

// Predicted reports whether Prediction holds a number.
func (r Result) Predicted() bool {
	_, ok := r.Prediction.(float64)
	return ok
}

// FlightRow is one line of the per-flight results table.
type FlightRow struct {
	File            string  `json:"archivo"`
	TotalTime       float64 `json:"tiempo_total"`
	RealHeight      float64 `json:"altura_real"`
	TheoreticalH    float64 `json:"altura_teorica"`
	ErrorPercentage float64 `json:"error_porcentual"`
}

// Predictor trains forests with a fixed size and seed.
type Predictor struct {
	Trees int
	Seed  uint64
}

// ModelName is the label of a trained model.
func (p Predictor) ModelName() string {
	return fmt.Sprintf("Random Forest Regressor (%d árboles)", p.Trees)
}

// FromFeatures trains on the per-file feature rows and predicts the apogee of
// the average flight. Only flights sharing the first usable flight's feature
// set are used.
func (p Predictor) FromFeatures(flights []*telemetry.Flight) Result {
	var (
		X    [][]float64
		y    []float64
		want []string
	)
	for _, f := range flights {
		row, cols, target, ok := Features(f)
		if !ok {
			continue
		}
		if want == nil {
			want = cols
		} else if !sameColumns(want, cols) {
			continue
		}
		X = append(X, row)
		y = append(y, target)
	}
	res := Result{Flights: len(y), Features: want}
	if len(X) < 2 {
		res.Prediction = MsgNoValidData
		res.Model = ModelNone
		return res
	}
	h, err := p.train(X, y)
	if err != nil {
		res.Prediction = MsgNoValidData
		res.Model = ModelNone
		return res
	}
	res.Prediction = analysis.Round(h, 2)
	res.Model = p.ModelName()
	return res
}

// FromDuration trains on flight duration alone and predicts the apogee at the
// mean duration. The table lists every flight with its Littlewood height.
func (p Predictor) FromDuration(flights []*telemetry.Flight, g float64) Result {
	var (
		X     [][]float64
		y     []float64
		table []FlightRow
	)
	for _, f := range flights {
		total := f.Duration()
		if math.IsNaN(total) {
			total = 0
		}
		apogee := 0.0
		if f.Has(telemetry.ColAltitude) {
			if h := analysis.NanMax(f.Column(telemetry.ColAltitude)); !math.IsNaN(h) {
				apogee = h
			}
		}
		total, apogee = analysis.Round(total, 2), analysis.Round(apogee, 2)
		theo := analysis.LittlewoodHeight(total, g)
		table = append(table, FlightRow{
			File:            f.Name,
			TotalTime:       total,
			RealHeight:      apogee,
			TheoreticalH:    analysis.Round(theo, 2),
			ErrorPercentage: analysis.Round(analysis.ErrorPercent(theo, apogee), 2),
		})
		X = append(X, []float64{total})
		y = append(y, apogee)
	}

	res := Result{Flights: len(table), Table: table, Features: []string{telemetry.ColTime}}
	if len(X) < 2 {
		res.Prediction = MsgNotEnoughData
		res.Model = ModelNone
		return res
	}
	h, err := p.train(X, y)
	if err != nil {
		res.Prediction = MsgNotEnoughData
		res.Model = ModelNone
		return res
	}
	res.Prediction = analysis.Round(h, 2)
	res.Model = p.ModelName()
	return res
}

// train fits a forest and predicts at the mean feature row.
func (p Predictor) train(X [][]float64, y []float64) (float64, error) {
	forest := NewForest(p.Trees, p.Seed)
	if err := forest.Fit(X, y); err != nil {
		return 0, err
	}
	return forest.Predict(MeanRow(X))
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
