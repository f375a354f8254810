package charts

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesNaNIsNull(t *testing.T) {
	b, err := json.Marshal(Values{1, math.NaN(), 2.5, math.Inf(1)})
	require.NoError(t, err)
	assert.Equal(t, "[1,null,2.5,null]", string(b))

	b, err = json.Marshal(Values(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestFigureSubplots(t *testing.T) {
	f := New("Paracaídas", 2).
		Axes(1, "Tiempo (s)", "Presión (Pa)").
		Axes(2, "Tiempo (s)", "Tasa (Pa/s)").
		Add(1, Lines("Presión", []float64{0, 1}, []float64{82000, 81990}, "#2196F3")).
		Add(2, Lines("Tasa", []float64{0, 1}, []float64{math.NaN(), -10}, "#FF9800")).
		VLine(1, "red")

	js, err := f.JSON()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(js), &got))

	layout := got["layout"].(map[string]any)
	assert.Contains(t, layout, "xaxis")
	assert.Contains(t, layout, "yaxis2")
	assert.Equal(t, float64(700), layout["height"])
	grid := layout["grid"].(map[string]any)
	assert.Equal(t, float64(2), grid["rows"])

	data := got["data"].([]any)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	second := data[1].(map[string]any)
	assert.NotContains(t, first, "xaxis")
	assert.Equal(t, "x2", second["xaxis"])
	assert.Equal(t, "y2", second["yaxis"])
	assert.Nil(t, second["y"].([]any)[0])

	shapes := layout["shapes"].([]any)
	require.Len(t, shapes, 1)
	assert.Equal(t, "paper", shapes[0].(map[string]any)["yref"])
}

func TestJSONIsScriptSafe(t *testing.T) {
	f := New("</script><b>", 1).Add(1, Bars("a&b", []string{"<x>"}, []float64{1}, ""))
	js, err := f.JSON()
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(js), "</script>"))
	assert.False(t, strings.Contains(string(js), "<x>"))
}
