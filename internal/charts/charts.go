// Package charts builds Plotly figures as JSON for the dashboard templates.
package charts

import (
	"bytes"
	"encoding/json"
	"html/template"
	"math"
	"strconv"
)

// Values marshals NaN and infinities as null so Plotly leaves gaps.
type Values []float64

// MarshalJSON implements json.Marshaler.
func (v Values) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			b.WriteString("null")
			continue
		}
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}

type Line struct {
	Color string  `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
	Dash  string  `json:"dash,omitempty"`
}

type Marker struct {
	Color  string `json:"color,omitempty"`
	Size   int    `json:"size,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// Trace is a scatter or bar series.
type Trace struct {
	Type          string   `json:"type"`
	Mode          string   `json:"mode,omitempty"`
	Name          string   `json:"name,omitempty"`
	X             any      `json:"x"`
	Y             Values   `json:"y"`
	Text          []string `json:"text,omitempty"`
	TextPosition  string   `json:"textposition,omitempty"`
	Line          *Line    `json:"line,omitempty"`
	Marker        *Marker  `json:"marker,omitempty"`
	XAxis         string   `json:"xaxis,omitempty"`
	YAxis         string   `json:"yaxis,omitempty"`
	HoverTemplate string   `json:"hovertemplate,omitempty"`
}

type Title struct {
	Text    string  `json:"text"`
	X       float64 `json:"x,omitempty"`
	XAnchor string  `json:"xanchor,omitempty"`
}

type Axis struct {
	Title    *Title `json:"title,omitempty"`
	ShowGrid bool   `json:"showgrid"`
	Anchor   string `json:"anchor,omitempty"`
}

type Grid struct {
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
	Pattern string `json:"pattern"`
}

// Shape is a layout shape; only vertical lines are drawn.
type Shape struct {
	Type    string  `json:"type"`
	X0      float64 `json:"x0"`
	X1      float64 `json:"x1"`
	Y0      float64 `json:"y0"`
	Y1      float64 `json:"y1"`
	XRef    string  `json:"xref"`
	YRef    string  `json:"yref"`
	Line    Line    `json:"line"`
	Opacity float64 `json:"opacity,omitempty"`
}

type Layout struct {
	Title      Title            `json:"title"`
	Height     int              `json:"height,omitempty"`
	ShowLegend bool             `json:"showlegend"`
	Grid       *Grid            `json:"grid,omitempty"`
	Shapes     []Shape          `json:"shapes,omitempty"`
	Axes       map[string]*Axis `json:"-"`
}

// MarshalJSON flattens Axes into xaxis, yaxis2... keys.
func (l Layout) MarshalJSON() ([]byte, error) {
	type plain Layout
	base, err := json.Marshal(plain(l))
	if err != nil {
		return nil, err
	}
	if len(l.Axes) == 0 {
		return base, nil
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, a := range l.Axes {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		m[k] = raw
	}
	return json.Marshal(m)
}

// Figure is a Plotly figure: traces plus layout.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// New creates a figure with a centred title and rows stacked subplots
// sharing nothing.
func New(title string, rows int) *Figure {
	f := &Figure{
		Layout: Layout{
			Title:      Title{Text: title, X: 0.5, XAnchor: "center"},
			Height:     350 * rows,
			ShowLegend: true,
			Axes:       map[string]*Axis{},
		},
	}
	if rows > 1 {
		f.Layout.Grid = &Grid{Rows: rows, Columns: 1, Pattern: "independent"}
	}
	return f
}

func axisKey(prefix string, row int) string {
	if row <= 1 {
		return prefix + "axis"
	}
	return prefix + "axis" + strconv.Itoa(row)
}

func axisRef(prefix string, row int) string {
	if row <= 1 {
		return prefix
	}
	return prefix + strconv.Itoa(row)
}

// Axes titles the x and y axes of subplot row (1-based).
func (f *Figure) Axes(row int, xTitle, yTitle string) *Figure {
	f.Layout.Axes[axisKey("x", row)] = &Axis{Title: &Title{Text: xTitle}, ShowGrid: true}
	f.Layout.Axes[axisKey("y", row)] = &Axis{Title: &Title{Text: yTitle}, ShowGrid: true}
	return f
}

// Add appends t to subplot row.
func (f *Figure) Add(row int, t Trace) *Figure {
	if row > 1 {
		t.XAxis, t.YAxis = axisRef("x", row), axisRef("y", row)
	}
	f.Data = append(f.Data, t)
	return f
}

// Lines is a line trace.
func Lines(name string, x, y []float64, color string) Trace {
	return Trace{Type: "scatter", Mode: "lines", Name: name, X: Values(x), Y: Values(y), Line: &Line{Color: color, Width: 2}}
}

// Markers is a marker-only trace.
func Markers(name string, x, y []float64, color string, size int) Trace {
	return Trace{Type: "scatter", Mode: "markers", Name: name, X: Values(x), Y: Values(y), Marker: &Marker{Color: color, Size: size}}
}

// Bars is a bar trace over categories.
func Bars(name string, categories []string, y []float64, color string) Trace {
	return Trace{Type: "bar", Name: name, X: categories, Y: Values(y), Marker: &Marker{Color: color}}
}

// VLine draws a dashed vertical line at x across the whole figure.
func (f *Figure) VLine(x float64, color string) *Figure {
	f.Layout.Shapes = append(f.Layout.Shapes, Shape{
		Type: "line", X0: x, X1: x, Y0: 0, Y1: 1,
		XRef: "x", YRef: "paper",
		Line:    Line{Color: color, Dash: "dash", Width: 1},
		Opacity: 0.5,
	})
	return f
}

// JSON renders the figure for a <script> block.
func (f *Figure) JSON() (template.JS, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}
