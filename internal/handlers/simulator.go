package handlers

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swelljoe/rocketdash/internal/db"
	"github.com/swelljoe/rocketdash/internal/simulator"
)

// recentRuns is how many simulator runs the page lists.
const recentRuns = 10

// maxBody caps request bodies of the JSON endpoint.
const maxBody = 1 << 16

// simulatorPage is the data of the simulator template.
type simulatorPage struct {
	MinPSI   float64
	MaxPSI   float64
	CalibPSI float64
	HMean    float64
	ACoef    float64
	Recent   []db.Simulation
}

// HandleSimulator renders the PSI simulator.
func (h *Handlers) HandleSimulator(w http.ResponseWriter, r *http.Request) {
	data := simulatorPage{
		MinPSI:   h.sim.MinPSI,
		MaxPSI:   h.sim.MaxPSI,
		CalibPSI: h.sim.CalibPSI,
		HMean:    h.sim.Info.HMean,
		ACoef:    h.sim.Info.ACoef,
	}
	if h.db != nil {
		recent, err := h.db.RecentSimulations(recentRuns)
		if err != nil {
			h.logger.Warn("recent simulations unavailable", zap.Error(err))
		}
		data.Recent = recent
	}
	h.render(w, "simulator.html", &page{Title: "Simulador", Path: r.URL.Path, Data: data})
}

type simulateResponse struct {
	simulator.Prediction
	ID string `json:"id"`
}

// HandleSimulate is the JSON endpoint behind the simulator page. psi may be
// a number or a numeric string.
func (h *Handlers) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err == nil {
		// malformed JSON is treated like an empty object
		_ = json.Unmarshal(raw, &body)
	}

	v, ok := body["psi"]
	if !ok || v == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Falta el parámetro 'psi'"})
		return
	}
	psi, ok := parsePSI(v)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PSI no es numérico"})
		return
	}

	pred := h.sim.Predict(psi)
	resp := simulateResponse{Prediction: pred, ID: uuid.NewString()}
	if h.db != nil {
		_, err := h.db.SaveSimulation(db.Simulation{
			ID:           resp.ID,
			PSIRequested: psi,
			PSIUsed:      pred.PSI,
			Height:       pred.Height,
			HeightMin:    pred.HeightMin,
			HeightMax:    pred.HeightMax,
		})
		if err != nil {
			h.logger.Warn("failed to record simulation", zap.String("id", resp.ID), zap.Error(err))
		}
	}
	h.logger.Info("simulation",
		zap.String("id", resp.ID),
		zap.Float64("psi", psi),
		zap.Float64("height_m", pred.Height))
	writeJSON(w, http.StatusOK, resp)
}

func parsePSI(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(t), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
