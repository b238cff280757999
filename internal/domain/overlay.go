package domain

// ProjectedTransform is a geographic coordinate expressed in the host's
// rendering space plus the world-units-per-meter factor at that latitude.
type ProjectedTransform struct {
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
	TranslateZ float64 `json:"translate_z"`
	Scale      float64 `json:"scale"`
}

// FrameResult reports what one render call produced
type FrameResult struct {
	Readiness   string      `json:"readiness"`
	Drawn       bool        `json:"drawn"`
	Model       string      `json:"model,omitempty"`
	ModelMatrix [16]float64 `json:"model_matrix"`
	Position    GeoPosition `json:"position"`
	Altitude    float64     `json:"altitude_m"`
}

// FrameRequest carries a host camera matrix, column-major
type FrameRequest struct {
	Camera []float64 `json:"camera"`
}
