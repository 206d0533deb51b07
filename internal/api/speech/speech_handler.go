package speech

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-city-adventures/internal/api"
	generativeAI "github.com/FACorreiaa/go-city-adventures/internal/api/generative_ai"
	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

// maxAudioUpload caps voice-command recordings (25MB, the provider's own
// transcription limit).
const maxAudioUpload = 25 << 20

type Handler struct {
	logger *slog.Logger
	media  generativeAI.MediaClient
}

func NewHandler(media generativeAI.MediaClient, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		media:  media,
	}
}

// SpeechToText handles POST /speech-to-text with a multipart "audio" part.
func (h *Handler) SpeechToText(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SpeechHandler").Start(r.Context(), "SpeechToText")
	defer span.End()

	l := h.logger.With(slog.String("handler", "SpeechToText"))

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	file, header, err := r.FormFile("audio")
	if err != nil {
		span.SetStatus(codes.Error, "Missing audio part")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, "Failed to read audio upload")
		return
	}

	filename := header.Filename
	if filename == "" {
		filename = "recording.webm"
	}

	text, err := h.media.Transcribe(ctx, audio, filename)
	if err != nil {
		l.ErrorContext(ctx, "Transcription failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Transcription failed")
		if errors.Is(err, types.ErrMissingCredential) {
			api.ErrorResponse(w, r, http.StatusInternalServerError, types.ErrMissingCredential.Error())
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to transcribe audio")
		return
	}

	span.SetStatus(codes.Ok, "Audio transcribed")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"text": text})
}

type textToSpeechRequest struct {
	Text string `json:"text"`
}

// TextToSpeech handles POST /text-to-speech and returns raw MP3 bytes.
func (h *Handler) TextToSpeech(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SpeechHandler").Start(r.Context(), "TextToSpeech")
	defer span.End()

	l := h.logger.With(slog.String("handler", "TextToSpeech"))

	var req textToSpeechRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		span.SetStatus(codes.Error, "Missing text")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Text is required")
		return
	}

	audio, err := h.media.Synthesize(ctx, req.Text)
	if err != nil {
		l.ErrorContext(ctx, "Speech synthesis failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Synthesis failed")
		if errors.Is(err, types.ErrMissingCredential) {
			api.ErrorResponse(w, r, http.StatusInternalServerError, types.ErrMissingCredential.Error())
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to convert text to speech")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		l.ErrorContext(ctx, "Failed to write audio response", slog.Any("error", err))
	}
	span.SetStatus(codes.Ok, "Speech synthesized")
}
