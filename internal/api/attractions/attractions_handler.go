package attractions

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-city-adventures/internal/api"
	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

type attractionsRequest struct {
	City string `json:"city"`
}

type attractionsResponse struct {
	Attractions []types.Attraction `json:"attractions"`
}

// GetAttractions handles POST /attractions. The response is a single JSON
// object: the attraction batch is atomic, so there is nothing to stream even
// though the upstream call is long-running.
func (h *Handler) GetAttractions(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AttractionsHandler").Start(r.Context(), "GetAttractions")
	defer span.End()

	l := h.logger.With(slog.String("handler", "GetAttractions"))

	var req attractionsRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.City) == "" {
		span.SetStatus(codes.Error, "Missing city")
		api.ErrorResponse(w, r, http.StatusBadRequest, "City is required")
		return
	}

	attractions, err := h.service.GetAttractions(ctx, req.City)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch attractions", slog.String("city", req.City), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Service operation failed")
		if errors.Is(err, types.ErrMissingCredential) {
			api.ErrorResponse(w, r, http.StatusInternalServerError, types.ErrMissingCredential.Error())
			return
		}
		// Raw upstream bodies stay in the logs; clients get a stable message.
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch attractions. Please try again.")
		return
	}

	l.InfoContext(ctx, "Returning attractions", slog.String("city", req.City), slog.Int("count", len(attractions)))
	span.SetStatus(codes.Ok, "Attractions returned")
	api.WriteJSONResponse(w, r, http.StatusOK, attractionsResponse{Attractions: attractions})
}
