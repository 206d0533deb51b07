package facts

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-city-adventures/internal/api"
	generativeAI "github.com/FACorreiaa/go-city-adventures/internal/api/generative_ai"
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

type factsRequest struct {
	Location  string `json:"location"`
	City      string `json:"city"`
	UserInput string `json:"userInput"`
}

// StreamFacts handles POST /additional-info. Fragments are forwarded raw with
// no framing; there is only one logical event type, so an envelope would add
// nothing.
func (h *Handler) StreamFacts(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("FactsHandler").Start(r.Context(), "StreamFacts")
	defer span.End()

	l := h.logger.With(slog.String("handler", "StreamFacts"))

	var req factsRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Location) == "" || strings.TrimSpace(req.City) == "" {
		span.SetStatus(codes.Error, "Missing required fields")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Location and city are required")
		return
	}

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

	stream, err := h.service.StreamFacts(ctx, req.Location, req.City, req.UserInput)
	if err != nil {
		// Headers are not committed yet, so this can still be a clean 500.
		l.ErrorContext(ctx, "Failed to open fact stream", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upstream open failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch additional information")
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			span.SetStatus(codes.Ok, "Fact stream finished")
			return
		}
		if err != nil {
			// The status line is long gone; the only honest option is an
			// in-band, human-readable fragment.
			l.ErrorContext(ctx, "Fact stream failed mid-flight", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Fact stream failed")
			fmt.Fprintf(w, "Error: %s", "failed to fetch additional information")
			flusher.Flush()
			return
		}
		if _, err := io.WriteString(w, fragment); err != nil {
			l.InfoContext(ctx, "Client disconnected during fact stream")
			return
		}
		flusher.Flush()
	}
}
