// Package simulator estimates the apogee of a water rocket from its launch
// pressure with a Littlewood model calibrated on real flights.
package simulator

import (
	"errors"
	"fmt"
	"math"

	"github.com/swelljoe/rocketdash/internal/analysis"
	"github.com/swelljoe/rocketdash/internal/config"
)

// ModelInfo holds the calibration constants.
type ModelInfo struct {
	ACoef         float64 `json:"A_coef"`
	KEst          float64 `json:"k_est"`
	HMean         float64 `json:"h_mean"`
	HAtCalibModel float64 `json:"h_at_calib_model"`
	HAtCalibReal  float64 `json:"h_at_calib_real"`
	Scale         float64 `json:"scale"`
}

// Prediction is the estimate for one pressure.
type Prediction struct {
	PSIRequested float64   `json:"-"`
	PSI          float64   `json:"psi"`
	Height       float64   `json:"height_m"`
	HeightMin    float64   `json:"height_min"`
	HeightMax    float64   `json:"height_max"`
	Explanation  string    `json:"explanation"`
	ModelInfo    ModelInfo `json:"model_info"`
}

// Model is a calibrated simulator.
type Model struct {
	Gravity     float64
	CalibPSI    float64
	MinPSI      float64
	MaxPSI      float64
	Uncertainty float64
	Info        ModelInfo
}

// New calibrates a model: the mean real height gives the ascent time through
// Littlewood inverted, t = k·sqrt(psi) gives k, and h = (g/8)·k²·psi is then
// scaled to reproduce the mean height at the calibration pressure.
func New(cfg config.SimulatorConfig) (*Model, error) {
	if len(cfg.RealHeights) == 0 {
		return nil, errors.New("simulator: no calibration heights")
	}
	if cfg.Gravity <= 0 || cfg.CalibPSI <= 0 {
		return nil, errors.New("simulator: gravity and calibration psi must be positive")
	}
	hMean := analysis.Mean(cfg.RealHeights)
	tMean := math.Sqrt(8 * hMean / cfg.Gravity)
	k := tMean / math.Sqrt(cfg.CalibPSI)
	a := cfg.Gravity / 8 * k * k
	hModel := a * cfg.CalibPSI

	return &Model{
		Gravity:     cfg.Gravity,
		CalibPSI:    cfg.CalibPSI,
		MinPSI:      cfg.MinPSI,
		MaxPSI:      cfg.MaxPSI,
		Uncertainty: cfg.Uncertainty,
		Info: ModelInfo{
			ACoef:         a,
			KEst:          k,
			HMean:         hMean,
			HAtCalibModel: hModel,
			HAtCalibReal:  hMean,
			Scale:         hMean / hModel,
		},
	}, nil
}

// Clamp limits psi to the model range.
func (m *Model) Clamp(psi float64) float64 {
	return math.Max(m.MinPSI, math.Min(m.MaxPSI, psi))
}

// Predict estimates the height for psi.
func (m *Model) Predict(psi float64) Prediction {
	used := m.Clamp(psi)
	h := m.Info.ACoef * used * m.Info.Scale
	u := h * m.Uncertainty

	p := Prediction{
		PSIRequested: psi,
		PSI:          analysis.Round(used, 2),
		Height:       analysis.Round(h, 2),
		HeightMin:    analysis.Round(math.Max(0, h-u), 2),
		HeightMax:    analysis.Round(h+u, 2),
		ModelInfo:    m.Info,
	}
	p.Explanation = m.explain(p)
	return p
}

func (m *Model) explain(p Prediction) string {
	return fmt.Sprintf("Modelo físico Littlewood + calibración con tus vuelos reales.\n"+
		"Fórmula aproximada: h ≈ A·PSI con A=%.4f.\n"+
		"Altura media real a %g PSI: %.2f m.\n"+
		"PSI recibido: %g PSI (limitado a %g PSI).\n"+
		"Altura estimada: %g m (intervalo %g a %g m).",
		m.Info.ACoef, m.CalibPSI, m.Info.HMean,
		p.PSIRequested, m.Clamp(p.PSIRequested),
		p.Height, p.HeightMin, p.HeightMax)
}
