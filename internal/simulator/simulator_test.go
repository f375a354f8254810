package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swelljoe/rocketdash/internal/config"
)

func defaultModel(t *testing.T) *Model {
	t.Helper()
	m, err := New(config.DefaultConfig().Simulator)
	require.NoError(t, err)
	return m
}

func TestCalibration(t *testing.T) {
	m := defaultModel(t)
	assert.InDelta(t, 17.4, m.Info.HMean, 1e-9)
	// the scale factor cancels exactly: A·psi_calib is the mean height
	assert.InDelta(t, 17.4/60, m.Info.ACoef, 1e-12)
	assert.InDelta(t, 1, m.Info.Scale, 1e-12)
	assert.InDelta(t, m.Info.HMean, m.Info.HAtCalibModel, 1e-9)
}

func TestPredict(t *testing.T) {
	m := defaultModel(t)

	tests := []struct {
		name              string
		psi               float64
		used, h, min, max float64
	}{
		{"calibration pressure", 60, 60, 17.4, 16.53, 18.27},
		{"clamped above", 100, 80, 23.2, 22.04, 24.36},
		{"clamped below", -5, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := m.Predict(tt.psi)
			assert.Equal(t, tt.psi, p.PSIRequested)
			assert.InDelta(t, tt.used, p.PSI, 1e-9)
			assert.InDelta(t, tt.h, p.Height, 1e-9)
			assert.InDelta(t, tt.min, p.HeightMin, 1e-9)
			assert.InDelta(t, tt.max, p.HeightMax, 1e-9)
			assert.Contains(t, p.Explanation, "Littlewood")
		})
	}
}

func TestExplanationMentionsClamp(t *testing.T) {
	p := defaultModel(t).Predict(95)
	assert.Contains(t, p.Explanation, "PSI recibido: 95 PSI (limitado a 80 PSI)")
	assert.Contains(t, p.Explanation, "A=0.2900")
}

func TestNewRejectsBadCalibration(t *testing.T) {
	cfg := config.DefaultConfig().Simulator
	cfg.RealHeights = nil
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = config.DefaultConfig().Simulator
	cfg.Gravity = 0
	_, err = New(cfg)
	assert.Error(t, err)
}
