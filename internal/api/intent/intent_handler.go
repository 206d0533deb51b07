package intent

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

type processInputRequest struct {
	Input    string `json:"input"`
	CardType string `json:"cardType"`
}

// ProcessInput handles POST /process-input. The upstream call streams, but
// the response here is one buffered JSON object.
func (h *Handler) ProcessInput(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("IntentHandler").Start(r.Context(), "ProcessInput")
	defer span.End()

	l := h.logger.With(slog.String("handler", "ProcessInput"))

	var req processInputRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Input) == "" || strings.TrimSpace(req.CardType) == "" {
		span.SetStatus(codes.Error, "Missing required fields")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Input and card type are required")
		return
	}

	result, err := h.service.ClassifyInput(ctx, req.Input, types.CardKind(req.CardType))
	if err != nil {
		l.ErrorContext(ctx, "Failed to classify input", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Classification failed")
		if errors.Is(err, types.ErrMissingCredential) {
			api.ErrorResponse(w, r, http.StatusInternalServerError, types.ErrMissingCredential.Error())
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to process input")
		return
	}

	span.SetStatus(codes.Ok, "Input classified")
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}
