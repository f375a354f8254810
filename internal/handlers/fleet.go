package handlers

import (
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/swelljoe/rocketdash/internal/analysis"
	"github.com/swelljoe/rocketdash/internal/charts"
	"github.com/swelljoe/rocketdash/internal/prediction"
	"github.com/swelljoe/rocketdash/internal/telemetry"
)

// HandleRanking ranks every flight in the data directory by apogee.
func (h *Handlers) HandleRanking(w http.ResponseWriter, r *http.Request) {
	p := &page{Title: "Fórmula del Éxito", Path: r.URL.Path}

	flights, notes, err := h.allFlights(r.Context())
	if err != nil {
		h.logger.Warn("ranking failed", zap.Error(err))
		p.Error = "Error: " + err.Error()
		h.render(w, "flight.html", p)
		return
	}
	p.Notes = notes

	summaries := make([]analysis.Summary, len(flights))
	for i, f := range flights {
		summaries[i] = analysis.Summarize(f, h.cfg.Simulator.Gravity)
	}
	ranked := analysis.Rank(summaries)

	table := Table{Headers: []string{
		"Posición", "Archivo", "Apogeo (m)", "Tiempo de apogeo (s)", "Duración (s)",
		"Velocidad máx. (m/s)", "Altitud de despliegue (m)", "Littlewood (m)",
	}}
	var names []string
	var apogees []float64
	for i, s := range ranked {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i + 1), s.Name, num(s.Apogee, 2), num(s.ApogeeTime, 2), num(s.Duration, 2),
			num(s.MaxSpeed, 2), num(s.DeploymentAltitude, 2), num(s.Littlewood, 2),
		})
		names = append(names, s.Name)
		apogees = append(apogees, s.Apogee)
	}
	p.Tables = append(p.Tables, table)
	p.stat("Vuelos analizados", strconv.Itoa(len(ranked)))
	if len(ranked) > 0 && !math.IsNaN(ranked[0].Apogee) {
		p.stat("Mejor vuelo", ranked[0].Name)
		p.stat("Mejor apogeo (m)", num(ranked[0].Apogee, 2))
	}

	fig := charts.New("Ranking por apogeo", 1).
		Axes(1, "Vuelo", "Apogeo (m)").
		Add(1, charts.Bars("Apogeo", names, apogees, colorAltitude))
	if err := p.chart(fig); err != nil {
		h.logger.Error("chart encode failed", zap.Error(err))
	}
	h.render(w, "flight.html", p)
}

// HandlePrediction trains on per-file features.
func (h *Handlers) HandlePrediction(w http.ResponseWriter, r *http.Request) {
	h.predictionPage(w, r, "Predicción", h.predictor.FromFeatures)
}

// HandlePredictionResults trains on flight duration and lists every flight.
func (h *Handlers) HandlePredictionResults(w http.ResponseWriter, r *http.Request) {
	h.predictionPage(w, r, "Resultados de Predicción", func(flights []*telemetry.Flight) prediction.Result {
		return h.predictor.FromDuration(flights, h.cfg.Simulator.Gravity)
	})
}

func (h *Handlers) predictionPage(w http.ResponseWriter, r *http.Request, title string, predict func([]*telemetry.Flight) prediction.Result) {
	p := &page{Title: title, Path: r.URL.Path}

	flights, notes, err := h.allFlights(r.Context())
	if err != nil {
		h.logger.Warn("prediction failed", zap.Error(err))
		p.Error = "Error: " + err.Error()
		h.render(w, "prediction.html", p)
		return
	}
	p.Notes = notes

	res := predict(flights)
	p.Data = res
	if len(res.Table) > 0 {
		table := Table{Headers: []string{"Archivo", "Tiempo total (s)", "Altura real (m)", "Altura teórica (m)", "Error (%)"}}
		for _, row := range res.Table {
			table.Rows = append(table.Rows, []string{
				row.File, num(row.TotalTime, 2), num(row.RealHeight, 2), num(row.TheoreticalH, 2), num(row.ErrorPercentage, 2),
			})
		}
		p.Tables = append(p.Tables, table)
	}
	h.logger.Debug("prediction",
		zap.String("page", title),
		zap.Int("flights", res.Flights),
		zap.Any("prediction", res.Prediction))
	h.render(w, "prediction.html", p)
}
