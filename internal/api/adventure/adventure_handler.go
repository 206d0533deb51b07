package adventure

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-city-adventures/internal/api"
	generativeAI "github.com/FACorreiaa/go-city-adventures/internal/api/generative_ai"
	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

type Handler struct {
	logger  *slog.Logger
	service Service
	chat    generativeAI.ChatClient
}

func NewHandler(service Service, chat generativeAI.ChatClient, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		chat:    chat,
	}
}

type adventureRequest struct {
	City        string             `json:"city"`
	Attractions []types.Attraction `json:"attractions"`
}

// GenerateAdventure handles POST /adventure. The response body is one JSON
// envelope per line over a chunked transfer; each envelope is flushed as soon
// as it is produced so the client can render cards before images exist.
func (h *Handler) GenerateAdventure(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdventureHandler").Start(r.Context(), "GenerateAdventure")
	defer span.End()

	l := h.logger.With(slog.String("handler", "GenerateAdventure"))

	var req adventureRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.City) == "" || len(req.Attractions) == 0 {
		span.SetStatus(codes.Error, "Missing required fields")
		api.ErrorResponse(w, r, http.StatusBadRequest, "City and attractions are required")
		return
	}

	// The credential gate must fire before headers commit; afterwards every
	// failure has to travel in-band.
	if err := h.chat.CheckCredential(); err != nil {
		span.SetStatus(codes.Error, "Missing credential")
		api.ErrorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		span.SetStatus(codes.Error, "Streaming unsupported")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	l.InfoContext(ctx, "Generating adventure",
		slog.String("city", req.City),
		slog.Int("attractions", len(req.Attractions)))

	resp := h.service.GenerateAdventure(ctx, req.City, req.Attractions)
	defer resp.Cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case env, open := <-resp.Stream:
			if !open {
				span.SetStatus(codes.Ok, "Stream finished")
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				l.ErrorContext(ctx, "Failed to marshal envelope", slog.Any("error", err))
				continue
			}
			fmt.Fprintf(w, "%s\n", data)
			flusher.Flush()

		case <-ctx.Done():
			l.InfoContext(ctx, "Client disconnected during adventure stream")
			span.SetStatus(codes.Error, "Client disconnected")
			return
		}
	}
}
