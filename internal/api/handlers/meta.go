package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"raincast/internal/config"
	"raincast/internal/core"
)

// MetaHandler serves the service information page at the API root.
type MetaHandler struct {
	cfg *config.Config
}

// NewMetaHandler creates a MetaHandler.
func NewMetaHandler(cfg *config.Config) *MetaHandler {
	return &MetaHandler{cfg: cfg}
}

// RegisterRoutes mounts the root endpoint.
func (h *MetaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleRoot)
}

type endpointInfo struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
	Example     string `json:"example,omitempty"`
}

type metaResponse struct {
	Project     string         `json:"project"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	Version     string         `json:"version,omitempty"`
	Endpoints   []endpointInfo `json:"endpoints"`
	InputFormat map[string]any `json:"input_format"`
}

// HandleRoot handles GET / with a human-oriented description of the API.
func (h *MetaHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	weather := h.cfg.Weather

	core.JSON(w, r, http.StatusOK, metaResponse{
		Project:     "Weather Prediction API",
		Location:    fmt.Sprintf("Sydney, Australia (%.4f, %.4f)", weather.Latitude, weather.Longitude),
		Description: "ML-based rain and precipitation predictions from historical weather",
		Version:     h.cfg.Build.Version,
		Endpoints: []endpointInfo{
			{Path: "/", Method: http.MethodGet, Description: "This page - API information"},
			{Path: "/health/", Method: http.MethodGet, Description: "Service and model readiness"},
			{
				Path:        "/predict/rain/",
				Method:      http.MethodGet,
				Description: "Predict if it will rain 7 days from the input date",
				Example:     "/predict/rain/?date=2024-09-15",
			},
			{
				Path:        "/predict/precipitation/fall/",
				Method:      http.MethodGet,
				Description: "Predict cumulative precipitation for the 3 days after the input date",
				Example:     "/predict/precipitation/fall/?date=2024-09-15",
			},
		},
		InputFormat: map[string]any{
			"parameter": "date",
			"format":    "YYYY-MM-DD",
			"example":   "2024-09-15",
			"note":      "Date must be in the past (historical data only)",
		},
	})
}
