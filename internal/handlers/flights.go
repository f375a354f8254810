package handlers

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/swelljoe/rocketdash/internal/analysis"
	"github.com/swelljoe/rocketdash/internal/charts"
	"github.com/swelljoe/rocketdash/internal/report"
	"github.com/swelljoe/rocketdash/internal/telemetry"
)

const (
	colorPressure    = "#2196F3"
	colorRate        = "#FF9800"
	colorAltitude    = "#4CAF50"
	colorTemperature = "#E91E63"
	colorAlert       = "#F44336"
	colorAccent      = "#9C27B0"
)

var phaseColors = map[string]string{
	analysis.PhasePreLaunch: "#9E9E9E",
	analysis.PhaseAscent:    "#4CAF50",
	analysis.PhaseApogee:    "#F44336",
	analysis.PhaseDescent:   "#2196F3",
	analysis.PhaseLanded:    "#795548",
}

func (p *page) chart(f *charts.Figure) error {
	js, err := f.JSON()
	if err != nil {
		return err
	}
	p.Charts = append(p.Charts, js)
	return nil
}

func chartTitle(p *page, what string) string {
	return fmt.Sprintf("Lanzamiento %s - %s", p.Current, what)
}

func (h *Handlers) parachuteView(_ context.Context, f *telemetry.Flight, p *page) error {
	pa, err := analysis.AnalyzeParachute(f)
	if err != nil {
		return err
	}

	fig := charts.New(chartTitle(p, "Análisis de Paracaídas"), 2).
		Axes(1, "Tiempo (s)", "Presión (Pa)").
		Axes(2, "Tiempo (s)", "Tasa (Pa/s)")
	pressure := charts.Lines("Presión", pa.Time, pa.Pressure, colorPressure)
	pressure.HoverTemplate = "Tiempo: %{x:.2f}s<br>Presión: %{y:.0f} Pa<extra></extra>"
	rate := charts.Lines("Tasa de Cambio", pa.Time, pa.SmoothedRate, colorRate)
	rate.HoverTemplate = "Tiempo: %{x:.2f}s<br>Tasa: %{y:.1f} Pa/s<extra></extra>"
	fig.Add(1, pressure).Add(2, rate)
	if d := pa.Deployment; d != nil {
		mark := charts.Markers("Apertura Paracaídas", []float64{d.Time}, []float64{d.Pressure}, "red", 15)
		mark.Mode = "markers+text"
		mark.Marker.Symbol = "star"
		mark.Text = []string{"Apertura"}
		mark.TextPosition = "top center"
		fig.Add(1, mark).VLine(d.Time, "red")
	}
	if err := p.chart(fig); err != nil {
		return err
	}

	s := pa.Stats()
	p.stat("Altitud de apogeo (m)", s.ApogeeAltitude)
	p.stat("Tiempo de apogeo (s)", s.ApogeeTime)
	p.stat("Tiempo de despliegue (s)", s.DeploymentTime)
	p.stat("Altitud de despliegue (m)", s.DeploymentAltitude)
	p.stat("Despliegue confirmado", s.Confirmed)
	q := "?lanzamiento=" + url.QueryEscape(p.Current)
	p.Links = []Stat{
		{"Descargar reporte PDF", "/analisis-paracaidas/reporte.pdf" + q},
		{"Descargar datos CSV", "/analisis-paracaidas/datos.csv" + q},
	}
	return nil
}

// loadParachute backs the report downloads.
func (h *Handlers) loadParachute(r *http.Request) (string, *telemetry.Flight, *analysis.Parachute, error) {
	id := launchID(r)
	f, err := h.flights.Load(h.launchFile(h.launches(), id))
	if err != nil {
		return id, nil, nil, err
	}
	pa, err := analysis.AnalyzeParachute(f)
	return id, f, pa, err
}

// HandleParachuteReport serves the parachute analysis as a PDF.
func (h *Handlers) HandleParachuteReport(w http.ResponseWriter, r *http.Request) {
	id, f, pa, err := h.loadParachute(r)
	if err != nil {
		h.logger.Warn("parachute report failed", zap.String("lanzamiento", id), zap.Error(err))
		http.Error(w, "Error: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	var buf bytes.Buffer
	if err := report.Parachute(&buf, id, f.Name, pa, time.Now()); err != nil {
		h.logger.Error("pdf render failed", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="paracaidas_lanzamiento_%s.pdf"`, id))
	w.Write(buf.Bytes())
}

// HandleParachuteCSV serves the derived parachute columns as CSV.
func (h *Handlers) HandleParachuteCSV(w http.ResponseWriter, r *http.Request) {
	id, _, pa, err := h.loadParachute(r)
	if err != nil {
		h.logger.Warn("parachute csv failed", zap.String("lanzamiento", id), zap.Error(err))
		http.Error(w, "Error: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="paracaidas_lanzamiento_%s.csv"`, id))
	if err := report.ParachuteCSV(w, pa); err != nil {
		h.logger.Error("csv write failed", zap.Error(err))
	}
}

func (h *Handlers) chartsView(_ context.Context, f *telemetry.Flight, p *page) error {
	type series struct {
		col, label, axis, color string
	}
	var present []series
	for _, s := range []series{
		{telemetry.ColAltitude, "Altitud", "Altitud (m)", colorAltitude},
		{telemetry.ColPressure, "Presión", "Presión (Pa)", colorPressure},
		{telemetry.ColTemperature, "Temperatura", "Temperatura (°C)", colorTemperature},
	} {
		if f.Has(s.col) {
			present = append(present, s)
		}
	}
	if len(present) == 0 {
		return fmt.Errorf("%s no tiene columnas para graficar", f.Name)
	}

	times := f.Times()
	fig := charts.New(chartTitle(p, "Visualizaciones"), len(present))
	for i, s := range present {
		xs := f.Column(s.col)
		fig.Axes(i+1, "Tiempo (s)", s.axis).Add(i+1, charts.Lines(s.label, times, xs, s.color))
		p.stat(s.label+" máx.", num(analysis.NanMax(xs), 2))
		p.stat(s.label+" mín.", num(analysis.NanMin(xs), 2))
	}
	p.stat("Muestras", strconv.Itoa(len(f.Samples)))
	p.stat("Duración (s)", num(f.Duration(), 2))
	return p.chart(fig)
}

func (h *Handlers) trajectoryView(_ context.Context, f *telemetry.Flight, p *page) error {
	k, err := analysis.Derive(f)
	if err != nil {
		return err
	}
	fig := charts.New(chartTitle(p, "Trayectoria"), 2).
		Axes(1, "Tiempo (s)", "Altitud (m)").
		Axes(2, "Tiempo (s)", "Velocidad (m/s)").
		Add(1, charts.Lines("Altitud", k.Time, k.Altitude, colorAltitude)).
		Add(2, charts.Lines("Velocidad vertical", k.Time, k.Speed, colorPressure))
	if err := p.chart(fig); err != nil {
		return err
	}

	apogee, err := analysis.Apogee(k.Altitude)
	if err != nil {
		return err
	}
	p.stat("Apogeo (m)", num(k.Altitude[apogee], 2))
	p.stat("Tiempo de apogeo (s)", num(k.Time[apogee], 2))
	p.stat("Velocidad máx. de ascenso (m/s)", num(analysis.NanMax(k.Speed), 2))
	p.stat("Velocidad máx. de descenso (m/s)", num(-analysis.NanMin(k.Speed), 2))
	p.stat("Duración (s)", num(f.Duration(), 2))
	return nil
}

func (h *Handlers) phasesView(_ context.Context, f *telemetry.Flight, p *page) error {
	phases, err := analysis.Phases(f)
	if err != nil {
		return err
	}
	times, alt := f.Times(), f.Column(telemetry.ColAltitude)

	fig := charts.New(chartTitle(p, "Fases de Vuelo"), 1).Axes(1, "Tiempo (s)", "Altitud (m)")
	table := Table{Headers: []string{"Fase", "Inicio (s)", "Fin (s)", "Duración (s)", "Altitud inicial (m)", "Altitud final (m)"}}
	for _, ph := range phases {
		fig.Add(1, charts.Lines(ph.Name, times[ph.Start:ph.End+1], alt[ph.Start:ph.End+1], phaseColors[ph.Name]))
		table.Rows = append(table.Rows, []string{
			ph.Name, num(ph.StartTime, 2), num(ph.EndTime, 2), num(ph.Duration, 2),
			num(ph.AltitudeStart, 2), num(ph.AltitudeEnd, 2),
		})
	}
	p.Tables = append(p.Tables, table)
	p.stat("Fases detectadas", strconv.Itoa(len(phases)))
	return p.chart(fig)
}

func (h *Handlers) propulsionView(_ context.Context, f *telemetry.Flight, p *page) error {
	pr, err := analysis.AnalyzePropulsion(f)
	if err != nil {
		return err
	}
	k, err := analysis.Derive(f)
	if err != nil {
		return err
	}
	fig := charts.New(chartTitle(p, "Propulsión"), 2).
		Axes(1, "Tiempo (s)", "Velocidad (m/s)").
		Axes(2, "Tiempo (s)", "Aceleración (m/s²)").
		Add(1, charts.Lines("Velocidad", k.Time, k.Speed, colorPressure)).
		Add(2, charts.Lines("Aceleración", k.Time, k.Acceleration, colorRate)).
		VLine(pr.MaxSpeedTime, colorAlert)
	if err := p.chart(fig); err != nil {
		return err
	}

	p.stat("Velocidad máxima (m/s)", num(pr.MaxSpeed, 2))
	p.stat("Tiempo de velocidad máxima (s)", num(pr.MaxSpeedTime, 2))
	p.stat("Aceleración máxima (m/s²)", num(pr.MaxAccel, 2))
	p.stat("Aceleración máxima (g)", num(pr.MaxAccelG, 2))
	p.stat("Tiempo de empuje (s)", num(pr.BurnTime, 2))
	p.stat("Aceleración media de empuje (m/s²)", num(pr.MeanAccel, 2))
	if !math.IsNaN(pr.SensorMaxAccZ) {
		p.stat("accelZ máx. del sensor", num(pr.SensorMaxAccZ, 2))
	}
	return nil
}

func (h *Handlers) loadsView(_ context.Context, f *telemetry.Flight, p *page) error {
	l, err := analysis.AnalyzeLoads(f)
	if err != nil {
		return err
	}
	fig := charts.New(chartTitle(p, "Análisis Estructural"), 1).
		Axes(1, "Tiempo (s)", "Factor de carga (g)").
		Add(1, charts.Lines("Factor de carga", l.Time, l.LoadFactor, colorAccent))
	if err := p.chart(fig); err != nil {
		return err
	}
	p.stat("Carga máxima (g)", num(l.MaxLoad, 2))
	p.stat("Tiempo de carga máxima (s)", num(l.MaxLoadTime, 2))
	p.stat("Carga mínima (g)", num(l.MinLoad, 2))
	p.stat("Tiempo de carga mínima (s)", num(l.MinLoadTime, 2))
	p.stat("Carga de aterrizaje (g)", num(l.Landing, 2))
	return nil
}

func (h *Handlers) densityView(_ context.Context, f *telemetry.Flight, p *page) error {
	d, err := analysis.AnalyzeDensity(f)
	if err != nil {
		return err
	}
	fig := charts.New(chartTitle(p, "Densidad del Aire"), 1).
		Axes(1, "Tiempo (s)", "Densidad (kg/m³)").
		Add(1, charts.Lines("Densidad", d.Time, d.Rho, colorPressure))
	if f.Has(telemetry.ColAltitude) {
		fig = charts.New(chartTitle(p, "Densidad del Aire"), 2).
			Axes(1, "Tiempo (s)", "Densidad (kg/m³)").
			Axes(2, "Altitud (m)", "Densidad (kg/m³)").
			Add(1, charts.Lines("Densidad", d.Time, d.Rho, colorPressure)).
			Add(2, charts.Markers("Densidad vs altitud", f.Column(telemetry.ColAltitude), d.Rho, colorAccent, 5))
	}
	if err := p.chart(fig); err != nil {
		return err
	}
	p.stat("Densidad media (kg/m³)", num(d.Mean, 4))
	p.stat("Densidad mínima (kg/m³)", num(d.Min, 4))
	p.stat("Densidad máxima (kg/m³)", num(d.Max, 4))
	p.stat("Densidad en tierra (kg/m³)", num(d.Ground, 4))
	p.stat("Densidad en apogeo (kg/m³)", num(d.Apogee, 4))
	p.stat("Cambio tierra a apogeo (%)", num(d.Change, 2))
	if d.UsedISA {
		p.Notes = append(p.Notes, "Sin temperatura registrada: se usó la temperatura ISA (15 °C, 6.5 °C/km).")
	}
	return nil
}

func (h *Handlers) barometricView(_ context.Context, f *telemetry.Flight, p *page) error {
	b, err := analysis.FitBarometric(f)
	if err != nil {
		return err
	}
	curveH := make([]float64, len(b.Curve))
	fitted := make([]float64, len(b.Curve))
	isa := make([]float64, len(b.Curve))
	for i, c := range b.Curve {
		curveH[i], fitted[i], isa[i] = c.Altitude, c.Fitted, c.ISA
	}
	isaLine := charts.Lines("ISA", curveH, isa, colorAlert)
	isaLine.Line.Dash = "dash"
	fig := charts.New(chartTitle(p, "Curva Barométrica"), 1).
		Axes(1, "Altitud (m)", "Presión (Pa)").
		Add(1, charts.Markers("Medido", b.Altitude, b.Pressure, colorPressure, 5)).
		Add(1, charts.Lines("Ajuste exponencial", curveH, fitted, colorRate)).
		Add(1, isaLine)
	if err := p.chart(fig); err != nil {
		return err
	}
	p.stat("P0 ajustada (Pa)", num(b.P0, 1))
	p.stat("Altura de escala (m)", num(b.ScaleHeight, 0))
	p.stat("R²", num(b.R2, 5))
	p.stat("RMSE del ajuste (Pa)", num(b.RMSEFit, 2))
	p.stat("RMSE contra ISA (Pa)", num(b.RMSEISA, 2))
	p.stat("Puntos", strconv.Itoa(len(b.Altitude)))
	return nil
}

func (h *Handlers) validationView(_ context.Context, f *telemetry.Flight, p *page) error {
	v, err := analysis.ValidateAltitude(f, h.cfg.Simulator.Gravity)
	if err != nil {
		return err
	}
	fig := charts.New(chartTitle(p, "Validación de Altitud"), 1).
		Axes(1, "Tiempo (s)", "Altitud (m)").
		Add(1, charts.Lines("Registrada", v.Time, v.Recorded, colorAltitude))
	if v.Barometric != nil {
		baro := charts.Lines("Barométrica (ISA)", v.Time, v.Barometric, colorPressure)
		baro.Line.Dash = "dot"
		fig.Add(1, baro)
	}
	if err := p.chart(fig); err != nil {
		return err
	}

	p.stat("Apogeo real (m)", num(v.RealApogee, 2))
	p.stat("Tiempo de ascenso (s)", num(v.AscentTime, 2))
	p.stat("Littlewood balístico (m)", num(v.Ballistic, 2))
	p.stat("Error balístico (%)", num(v.BallisticError, 2))
	p.stat("Tiempo total (s)", num(v.TotalTime, 2))
	p.stat("Littlewood con tiempo total (m)", num(v.FromTotal, 2))
	p.stat("Error con tiempo total (%)", num(v.FromTotalError, 2))
	if v.Barometric != nil {
		p.stat("Apogeo barométrico (m)", num(v.BaroApogee, 2))
		p.stat("RMSE barométrica (m)", num(v.RMSE, 3))
		p.stat("Diferencia máx. (m)", num(v.MaxAbsDiff, 3))
	}
	return nil
}

// maxAnomalyRows caps the detail table.
const maxAnomalyRows = 200

func (h *Handlers) anomaliesView(_ context.Context, f *telemetry.Flight, p *page) error {
	res := analysis.DetectAnomalies(f, analysis.DefaultThresholds)

	p.stat("Muestras analizadas", strconv.Itoa(res.Samples))
	p.stat("Anomalías", strconv.Itoa(len(res.Anomalies)))
	rate := 0.0
	if res.Samples > 0 {
		rate = float64(len(res.Anomalies)) / float64(res.Samples) * 100
	}
	p.stat("Muestras con anomalía (%)", num(rate, 2))

	counts := Table{Title: "Resumen", Headers: []string{"Tipo", "Cantidad", "Causa probable"}}
	for _, c := range res.Counts {
		counts.Rows = append(counts.Rows, []string{c.Kind.Label(), strconv.Itoa(c.Count), c.Kind.Cause()})
	}
	detail := Table{Title: "Detalle", Headers: []string{"Fila", "Tiempo (s)", "Tipo", "Valor", "Detalle"}}
	for i, a := range res.Anomalies {
		if i == maxAnomalyRows {
			p.Notes = append(p.Notes, fmt.Sprintf("Se muestran las primeras %d anomalías.", maxAnomalyRows))
			break
		}
		detail.Rows = append(detail.Rows, []string{
			strconv.Itoa(a.Index), num(a.Time, 2), a.Kind.Label(), num(a.Value, 2), a.Detail,
		})
	}
	if len(res.Anomalies) == 0 {
		p.Notes = append(p.Notes, "No se detectaron anomalías.")
	} else {
		p.Tables = append(p.Tables, counts, detail)
	}

	if !f.Has(telemetry.ColPressure) {
		return nil
	}
	times, pressure := f.Times(), f.Column(telemetry.ColPressure)
	var at, val []float64
	for _, a := range res.Anomalies {
		at = append(at, times[a.Index])
		val = append(val, pressure[a.Index])
	}
	mark := charts.Markers("Anomalías", at, val, colorAlert, 10)
	mark.Marker.Symbol = "x"
	fig := charts.New(chartTitle(p, "Detección de Anomalías"), 1).
		Axes(1, "Tiempo (s)", "Presión (Pa)").
		Add(1, charts.Lines("Presión", times, pressure, colorPressure)).
		Add(1, mark)
	return p.chart(fig)
}

// groundSamples is how many leading rows describe the conditions on the pad.
const groundSamples = 5

func (h *Handlers) environmentView(ctx context.Context, f *telemetry.Flight, p *page) error {
	if !f.Has(telemetry.ColPressure) && !f.Has(telemetry.ColTemperature) {
		return fmt.Errorf("%s no tiene presión ni temperatura", f.Name)
	}
	times := f.Times()
	n := min(groundSamples, len(f.Samples))
	groundP := math.NaN()
	groundT := math.NaN()

	rows := 0
	fig := charts.New(chartTitle(p, "Condiciones Ambientales"), 1)
	if f.Has(telemetry.ColTemperature) {
		rows++
		temp := f.Column(telemetry.ColTemperature)
		groundT = analysis.Median(temp[:n])
		fig.Axes(rows, "Tiempo (s)", "Temperatura (°C)").Add(rows, charts.Lines("Temperatura", times, temp, colorTemperature))
	}
	if f.Has(telemetry.ColPressure) {
		rows++
		pressure := f.Column(telemetry.ColPressure)
		groundP = analysis.Median(pressure[:n])
		fig.Axes(rows, "Tiempo (s)", "Presión (Pa)").Add(rows, charts.Lines("Presión", times, pressure, colorPressure))
	}
	if rows > 1 {
		fig.Layout.Grid = &charts.Grid{Rows: rows, Columns: 1, Pattern: "independent"}
		fig.Layout.Height = 350 * rows
	}
	if err := p.chart(fig); err != nil {
		return err
	}

	p.stat("Temperatura del sensor en tierra (°C)", num(groundT, 2))
	p.stat("Presión del sensor en tierra (Pa)", num(groundP, 0))
	if !math.IsNaN(groundP) {
		t := groundT
		if math.IsNaN(t) {
			t = 15
		}
		p.stat("Densidad en tierra (kg/m³)", num(analysis.AirDensity(groundP, t), 4))
	}

	if h.weather == nil {
		return nil
	}
	c, err := h.weather.Current(ctx, h.cfg.Weather.Latitude, h.cfg.Weather.Longitude)
	if err != nil {
		h.logger.Warn("external weather unavailable", zap.Error(err))
		p.Notes = append(p.Notes, "Servicio meteorológico no disponible; se muestran solo los datos del sensor.")
		return nil
	}
	p.stat("Temperatura externa (°C)", num(c.Temperature, 1))
	p.stat("Presión externa en superficie (Pa)", num(c.PressurePa(), 0))
	p.stat("Humedad relativa externa (%)", num(c.Humidity, 0))
	p.stat("Diferencia de temperatura (°C)", num(groundT-c.Temperature, 2))
	p.stat("Diferencia de presión (Pa)", num(groundP-c.PressurePa(), 0))
	p.Notes = append(p.Notes, "Lectura externa de Open-Meteo a las "+c.ObservedAt+".")
	return nil
}
