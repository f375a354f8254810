// Package report renders the parachute analysis as a PDF or CSV download.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/swelljoe/rocketdash/internal/analysis"
)

// Plot box on a Letter page, in mm.
var (
	PlotBoxWidth   = 180.0
	PlotBoxHeight  = 90.0
	PlotBoxOffsetX = 18.0
	PlotBoxOffsetY = 110.0
)

// Parachute writes a one-page PDF report of p for the named launch.
func Parachute(w io.Writer, launch, flight string, p *analysis.Parachute, generated time.Time) error {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(fmt.Sprintf("Lanzamiento %s - Análisis de Paracaídas", launch)))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Archivo: %s    Generado: %s", flight, generated.Format("2006-01-02 15:04"))))
	pdf.Ln(12)

	stats := p.Stats()
	rows := [][2]string{
		{"Altitud de apogeo (m)", stats.ApogeeAltitude},
		{"Tiempo de apogeo (s)", stats.ApogeeTime},
		{"Tiempo de despliegue (s)", stats.DeploymentTime},
		{"Altitud de despliegue (m)", stats.DeploymentAltitude},
		{"Despliegue confirmado", stats.Confirmed},
		{"Muestras", strconv.Itoa(len(p.Time))},
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(0xE3, 0xF2, 0xFD)
	pdf.CellFormat(90, 8, tr("Métrica"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 8, "Valor", "1", 1, "L", true, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, r := range rows {
		pdf.CellFormat(90, 7, tr(r[0]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 7, tr(r[1]), "1", 1, "L", false, 0, "")
	}

	drawPressure(pdf, tr, p)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.Output(w)
}

// drawPressure places the pressure chart inside the plot box.
func drawPressure(pdf *gofpdf.Fpdf, tr func(string) string, p *analysis.Parachute) {
	pdf.SetXY(PlotBoxOffsetX, PlotBoxOffsetY-8)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 6, tr("Presión atmosférica (Pa) vs tiempo (s)"))

	img, err := PressureChart(p)
	if err != nil {
		pdf.SetError(err)
		return
	}
	if img == nil {
		pdf.SetDrawColor(0, 0, 0)
		pdf.Rect(PlotBoxOffsetX, PlotBoxOffsetY, PlotBoxWidth, PlotBoxHeight, "D")
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("presion", opts, bytes.NewReader(img))
	pdf.ImageOptions("presion", PlotBoxOffsetX, PlotBoxOffsetY, PlotBoxWidth, PlotBoxHeight, false, opts, 0, "")
}

// PressureChart renders pressure against time as a PNG, with the deployment
// marked by a dashed red line. It returns nil when there is nothing to plot.
func PressureChart(p *analysis.Parachute) ([]byte, error) {
	var pts plotter.XYs
	for i, t := range p.Time {
		if v := p.Pressure[i]; !math.IsNaN(t) && !math.IsNaN(v) {
			pts = append(pts, plotter.XY{X: t, Y: v})
		}
	}
	if len(pts) < 2 {
		return nil, nil
	}

	plt := plot.New()
	plt.X.Label.Text = "Tiempo (s)"
	plt.Y.Label.Text = "Presión (Pa)"
	plt.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{R: 0x21, G: 0x96, B: 0xF3, A: 0xFF}
	line.Width = vg.Points(1.5)
	plt.Add(line)
	plt.Legend.Add("Presión", line)

	if d := p.Deployment; d != nil {
		lo, hi := analysis.NanMin(p.Pressure), analysis.NanMax(p.Pressure)
		mark, err := plotter.NewLine(plotter.XYs{{X: d.Time, Y: lo}, {X: d.Time, Y: hi}})
		if err != nil {
			return nil, err
		}
		mark.Color = color.RGBA{R: 0xF4, G: 0x43, B: 0x36, A: 0xFF}
		mark.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		plt.Add(mark)
		plt.Legend.Add("Apertura", mark)
	}
	plt.Legend.Top = true

	// Same aspect as the plot box, in points.
	w := vg.Length(PlotBoxWidth) * vg.Millimeter
	h := vg.Length(PlotBoxHeight) * vg.Millimeter
	wt, err := plt.WriterTo(w, h, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CSVHeader lists the exported columns.
var CSVHeader = []string{"time_s", "pressure_pa", "altitude_m", "pressure_rate_pa_s", "smoothed_rate_pa_s", "evento"}

// ParachuteCSV writes the derived per-sample columns. NaN is written empty.
func ParachuteCSV(w io.Writer, p *analysis.Parachute) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for i := range p.Time {
		event := ""
		switch {
		case i == p.Apogee:
			event = "apogeo"
		case p.Deployment != nil && i == p.Deployment.Index:
			event = "despliegue"
		}
		rec := []string{
			format(p.Time[i]),
			format(p.Pressure[i]),
			format(p.Altitude[i]),
			format(p.Rate[i]),
			format(p.SmoothedRate[i]),
			event,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func format(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
