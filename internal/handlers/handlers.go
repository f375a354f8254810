package handlers

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/swelljoe/rocketdash/internal/config"
	"github.com/swelljoe/rocketdash/internal/db"
	"github.com/swelljoe/rocketdash/internal/prediction"
	"github.com/swelljoe/rocketdash/internal/simulator"
	"github.com/swelljoe/rocketdash/internal/telemetry"
	"github.com/swelljoe/rocketdash/internal/weather"
)

//go:embed templates/*.html
var templateFS embed.FS

// Database defines the interface for database operations needed by handlers
type Database interface {
	Ping() error
	ListFlights() ([]db.Flight, error)
	SaveSimulation(s db.Simulation) (string, error)
	RecentSimulations(limit int) ([]db.Simulation, error)
}

// WeatherSource provides current conditions at the launch site.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Conditions, error)
}

// Deps are the collaborators of the handlers. DB and Weather may be nil.
type Deps struct {
	Config  *config.Config
	DB      Database
	Cache   *telemetry.Cache
	Weather WeatherSource
	Logger  *zap.Logger
}

// Handlers holds dependencies for HTTP handlers
type Handlers struct {
	cfg       *config.Config
	db        Database
	flights   *telemetry.Cache
	weather   WeatherSource
	sim       *simulator.Model
	predictor prediction.Predictor
	logger    *zap.Logger
	templates map[string]*template.Template
}

var pageTemplates = []string{"index.html", "flight.html", "prediction.html", "simulator.html"}

// New creates a new Handlers instance
func New(deps Deps) (*Handlers, error) {
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	if deps.Cache == nil {
		deps.Cache = telemetry.NewCache()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	sim, err := simulator.New(deps.Config.Simulator)
	if err != nil {
		return nil, err
	}

	templates := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		templates[name] = tmpl
	}

	return &Handlers{
		cfg:       deps.Config,
		db:        deps.DB,
		flights:   deps.Cache,
		weather:   deps.Weather,
		sim:       sim,
		predictor: prediction.Predictor{Trees: deps.Config.Prediction.Trees, Seed: deps.Config.Prediction.Seed},
		logger:    deps.Logger,
		templates: templates,
	}, nil
}

// Register adds every route to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.HandleIndex)
	mux.HandleFunc("GET /health", h.HandleHealth)

	mux.HandleFunc("GET /analisis-paracaidas/{$}", h.flightPage("Análisis de Paracaídas", h.parachuteView))
	mux.HandleFunc("GET /analisis-paracaidas/reporte.pdf", h.HandleParachuteReport)
	mux.HandleFunc("GET /analisis-paracaidas/datos.csv", h.HandleParachuteCSV)
	mux.HandleFunc("GET /curva-barometrica/{$}", h.flightPage("Curva Barométrica", h.barometricView))
	mux.HandleFunc("GET /dashboard-ambiental/{$}", h.flightPage("Dashboard Ambiental", h.environmentView))
	mux.HandleFunc("GET /densidad-aire/{$}", h.flightPage("Densidad del Aire", h.densityView))
	mux.HandleFunc("GET /deteccion-anomalias/{$}", h.flightPage("Detección de Anomalías", h.anomaliesView))
	mux.HandleFunc("GET /estructural/{$}", h.flightPage("Análisis Estructural", h.loadsView))
	mux.HandleFunc("GET /fases-vuelo/{$}", h.flightPage("Fases de Vuelo", h.phasesView))
	mux.HandleFunc("GET /propulsion/{$}", h.flightPage("Propulsión", h.propulsionView))
	mux.HandleFunc("GET /trayectoria/{$}", h.flightPage("Trayectoria", h.trajectoryView))
	mux.HandleFunc("GET /validacion-altitud/{$}", h.flightPage("Validación de Altitud", h.validationView))
	mux.HandleFunc("GET /visualizaciones/{$}", h.flightPage("Visualizaciones", h.chartsView))
	mux.HandleFunc("GET /formula-exito/{$}", h.HandleRanking)

	mux.HandleFunc("GET /prediccion/{$}", h.HandlePrediction)
	mux.HandleFunc("GET /prediccion/resultados", h.HandlePredictionResults)

	mux.HandleFunc("GET /simulador/{$}", h.HandleSimulator)
	mux.HandleFunc("POST /simulador/calcular", h.HandleSimulate)
}

// menu lists the dashboards on the index page.
var menu = []struct {
	Path, Title, Description string
}{
	{"/analisis-paracaidas/", "Análisis de Paracaídas", "Apogeo y apertura del paracaídas a partir de la presión"},
	{"/trayectoria/", "Trayectoria", "Altitud y velocidad vertical en el tiempo"},
	{"/fases-vuelo/", "Fases de Vuelo", "Rampa, ascenso, apogeo, descenso y aterrizaje"},
	{"/propulsion/", "Propulsión", "Velocidad máxima, aceleración y tiempo de empuje"},
	{"/estructural/", "Estructural", "Cargas en g durante el vuelo"},
	{"/densidad-aire/", "Densidad del Aire", "Densidad por muestra a partir de presión y temperatura"},
	{"/curva-barometrica/", "Curva Barométrica", "Ajuste presión contra altitud y modelo ISA"},
	{"/validacion-altitud/", "Validación de Altitud", "Littlewood y altitud barométrica contra la registrada"},
	{"/deteccion-anomalias/", "Detección de Anomalías", "Picos, saltos y huecos en los datos del sensor"},
	{"/dashboard-ambiental/", "Dashboard Ambiental", "Condiciones en tierra del sensor y del servicio meteorológico"},
	{"/visualizaciones/", "Visualizaciones", "Altitud, presión y temperatura"},
	{"/formula-exito/", "Fórmula del Éxito", "Ranking de vuelos por apogeo"},
	{"/prediccion/", "Predicción", "Random Forest sobre las características de cada vuelo"},
	{"/prediccion/resultados", "Resultados", "Predicción por duración y tabla Littlewood"},
	{"/simulador/", "Simulador", "Altura estimada a partir de la presión de lanzamiento"},
}

// HandleIndex handles the main page
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	h.render(w, "index.html", &page{Title: "Rocketdash", Data: menu})
}

// HandleHealth handles health check endpoint
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := "ok"
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			status = "degraded"
		}
	} else {
		status = "no_database"
	}

	w.Write([]byte(`{"status":"` + status + `"}`))
}

// Launch is an entry of the launch selector.
type Launch struct {
	ID   string
	File string
}

// Stat is a labelled value.
type Stat struct {
	Label string
	Value string
}

// Table is a titled grid of preformatted cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// page is the data every template receives.
type page struct {
	Title    string
	Path     string
	Launches []Launch
	Current  string
	Error    string
	Notes    []string
	Stats    []Stat
	Tables   []Table
	Charts   []template.JS
	Links    []Stat // label, href
	Data     any
}

func (p *page) stat(label, value string) { p.Stats = append(p.Stats, Stat{label, value}) }

func (p *page) clear() {
	p.Stats, p.Tables, p.Charts, p.Links, p.Data = nil, nil, nil, nil, nil
}

func (h *Handlers) render(w http.ResponseWriter, name string, p *page) {
	tmpl, ok := h.templates[name]
	if !ok {
		h.logger.Error("unknown template", zap.String("template", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", p); err != nil {
		h.logger.Error("template execution failed", zap.String("template", name), zap.Error(err))
	}
}

// launches is the configured launches followed by cataloged flights that are
// not configured.
func (h *Handlers) launches() []Launch {
	var out []Launch
	known := map[string]bool{}
	for _, id := range h.cfg.LaunchIDs() {
		file := h.cfg.Launches[id]
		out = append(out, Launch{ID: id, File: file})
		known[file] = true
	}
	if h.db == nil {
		return out
	}
	flights, err := h.db.ListFlights()
	if err != nil {
		h.logger.Warn("flight catalog unavailable", zap.Error(err))
		return out
	}
	for _, f := range flights {
		file := filepath.Base(f.File)
		if known[file] {
			continue
		}
		known[file] = true
		out = append(out, Launch{ID: strings.TrimSuffix(file, filepath.Ext(file)), File: file})
	}
	return out
}

// launchFile maps a launch id to its CSV path; unknown ids use launch 1.
func (h *Handlers) launchFile(launches []Launch, id string) string {
	for _, l := range launches {
		if l.ID == id {
			return filepath.Join(h.cfg.DataDir, l.File)
		}
	}
	return filepath.Join(h.cfg.DataDir, h.cfg.Launches["1"])
}

func launchID(r *http.Request) string {
	if id := r.URL.Query().Get("lanzamiento"); id != "" {
		return id
	}
	return "1"
}

// flightView fills p from one flight.
type flightView func(ctx context.Context, f *telemetry.Flight, p *page) error

func (h *Handlers) flightPage(title string, view flightView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		launches := h.launches()
		p := &page{
			Title:    title,
			Path:     r.URL.Path,
			Launches: launches,
			Current:  launchID(r),
		}

		f, err := h.flights.Load(h.launchFile(launches, p.Current))
		if err == nil {
			err = view(r.Context(), f, p)
		}
		if err != nil {
			h.logger.Warn("flight page failed",
				zap.String("path", r.URL.Path),
				zap.String("lanzamiento", p.Current),
				zap.Error(err))
			p.clear()
			p.Error = "Error: " + err.Error()
		}
		h.render(w, "flight.html", p)
	}
}

// allFlights loads every CSV in the data directory.
func (h *Handlers) allFlights(ctx context.Context) ([]*telemetry.Flight, []string, error) {
	names, err := telemetry.ListCSV(h.cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(h.cfg.DataDir, n)
	}
	flights, failed := h.flights.LoadAll(ctx, paths)

	var notes []string
	for _, p := range paths {
		if err, ok := failed[p]; ok {
			h.logger.Warn("skipping flight", zap.String("file", p), zap.Error(err))
			notes = append(notes, fmt.Sprintf("Omitido %s: %v", filepath.Base(p), err))
		}
	}
	return flights, notes, nil
}

// num formats v with the given decimals, or "N/A" for NaN.
func num(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	return fmt.Sprintf("%.*f", decimals, v)
}
