package city

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-city-adventures/internal/api"
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewCityHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// GetSuggestedCities handles GET /cities.
func (h *Handler) GetSuggestedCities(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CityHandler").Start(r.Context(), "GetSuggestedCities")
	defer span.End()

	cities := h.service.GetSuggestedCities(ctx)

	span.SetStatus(codes.Ok, "Cities retrieved")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]any{"cities": cities})
}
