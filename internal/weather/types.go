package weather

import "time"

// Conditions are the current surface conditions at the launch site.
type Conditions struct {
	Temperature float64   `json:"temperature_c"`
	Pressure    float64   `json:"surface_pressure_hpa"`
	Humidity    float64   `json:"relative_humidity"`
	ObservedAt  string    `json:"observed_at"`
	CachedAt    time.Time `json:"cached_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PressurePa converts the surface pressure to pascals, the unit of the
// flight logs.
func (c Conditions) PressurePa() float64 { return c.Pressure * 100 }

// ForecastResponse is the subset of the Open-Meteo /v1/forecast response
// that is read.
type ForecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   struct {
		Time             string  `json:"time"`
		Temperature2m    float64 `json:"temperature_2m"`
		SurfacePressure  float64 `json:"surface_pressure"`
		RelativeHumidity float64 `json:"relative_humidity_2m"`
	} `json:"current"`
}
