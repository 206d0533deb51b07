package adventure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-city-adventures/app/observability/metrics"
	generativeAI "github.com/FACorreiaa/go-city-adventures/internal/api/generative_ai"
	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

// StreamingResponse wraps the envelope channel for one adventure generation.
// The channel is closed after the terminal envelope; Cancel stops the
// generation loop at its next suspension point.
type StreamingResponse struct {
	Stream <-chan types.RelayEnvelope
	Cancel context.CancelFunc
}

var _ Service = (*ServiceImpl)(nil)

// Service generates one adventure as an ordered envelope stream.
type Service interface {
	GenerateAdventure(ctx context.Context, city string, attractions []types.Attraction) *StreamingResponse
}

type ServiceImpl struct {
	logger *slog.Logger
	chat   generativeAI.ChatClient
	media  generativeAI.MediaClient
}

func NewServiceImpl(chat generativeAI.ChatClient, media generativeAI.MediaClient, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		chat:   chat,
		media:  media,
	}
}

// storyPayload is the JSON-mode narrative shape requested from the model.
type storyPayload struct {
	Cards []struct {
		Type    string `json:"type"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"cards"`
}

// GenerateAdventure starts the generation loop and returns immediately. The
// loop owns the returned channel: it is the only writer and closes it after
// emitting exactly one terminal envelope.
func (s *ServiceImpl) GenerateAdventure(ctx context.Context, city string, attractions []types.Attraction) *StreamingResponse {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan types.RelayEnvelope)

	metrics.Get().AdventuresStartedTotal.Add(ctx, 1)

	go s.run(ctx, city, attractions, ch)

	return &StreamingResponse{Stream: ch, Cancel: cancel}
}

func (s *ServiceImpl) run(ctx context.Context, city string, attractions []types.Attraction, ch chan<- types.RelayEnvelope) {
	adventureID := uuid.New().String()
	ctx, span := otel.Tracer("AdventureService").Start(ctx, "GenerateAdventure", trace.WithAttributes(
		attribute.String("adventure.id", adventureID),
		attribute.String("city.name", city),
		attribute.Int("attractions.count", len(attractions)),
	))
	defer span.End()
	defer close(ch)

	l := s.logger.With(
		slog.String("method", "GenerateAdventure"),
		slog.String("adventure_id", adventureID),
		slog.String("city", city))

	cards, err := s.generateNarrative(ctx, city, attractions)
	if err != nil {
		// Narrative delivery is all-or-nothing: no Card envelope has been
		// emitted yet, so the stream terminates with a single error.
		l.ErrorContext(ctx, "Narrative generation failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Narrative generation failed")
		s.sendEnvelope(ctx, ch, types.ErrorEnvelope("Failed to generate adventure"))
		return
	}

	// All cards go out before any image work begins, in narrative order.
	for _, card := range cards {
		if !s.sendEnvelope(ctx, ch, types.CardEnvelope(card)) {
			return
		}
	}

	// Image enrichment is best-effort per card and strictly sequential: a
	// failed image must never abort the remaining cards or the stream.
	for _, card := range cards {
		url, err := s.media.GenerateImage(ctx, getImagePrompt(card.Title, city))
		if err != nil {
			if ctx.Err() != nil {
				l.InfoContext(ctx, "Adventure generation cancelled", slog.String("card_id", card.ID))
				return
			}
			l.WarnContext(ctx, "Image generation failed", slog.String("card_id", card.ID), slog.Any("error", err))
			metrics.Get().ImageGenerationFailedTotal.Add(ctx, 1)
			if !s.sendEnvelope(ctx, ch, types.ImageErrorEnvelope(card.ID)) {
				return
			}
			continue
		}
		if !s.sendEnvelope(ctx, ch, types.ImageEnvelope(card.ID, url)) {
			return
		}
	}

	s.sendEnvelope(ctx, ch, types.CompleteEnvelope())
	span.SetStatus(codes.Ok, "Adventure generated")
}

// generateNarrative asks for the five-part story in JSON mode and validates
// its structure. Kinds are forced by slot so the alternation invariant holds
// even when the model mislabels a card.
func (s *ServiceImpl) generateNarrative(ctx context.Context, city string, attractions []types.Attraction) ([]types.AdventureCard, error) {
	result, err := s.chat.Complete(ctx, generativeAI.ChatRequest{
		System:   narrativeSystemPrompt,
		Prompt:   getNarrativePrompt(city, attractions),
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}

	var story storyPayload
	if err := json.Unmarshal([]byte(cleanJSONResponse(result.Text)), &story); err != nil {
		return nil, &types.ProtocolError{Op: "narrative parse", Err: err}
	}
	if len(story.Cards) < types.AdventureCardCount {
		return nil, &types.ProtocolError{
			Op:  "narrative parse",
			Err: fmt.Errorf("expected %d cards, got %d", types.AdventureCardCount, len(story.Cards)),
		}
	}

	cards := make([]types.AdventureCard, types.AdventureCardCount)
	for i := range cards {
		cards[i] = types.AdventureCard{
			ID:          types.CardID(i),
			Kind:        types.KindForSlot(i),
			Title:       story.Cards[i].Title,
			Content:     story.Cards[i].Content,
			ImageStatus: types.ImagePending,
		}
	}
	return cards, nil
}

// sendEnvelope delivers one envelope unless the stream consumer is gone.
// There is no drop-on-timeout: losing an envelope would corrupt client state,
// so the only escape is cancellation.
func (s *ServiceImpl) sendEnvelope(ctx context.Context, ch chan<- types.RelayEnvelope, env types.RelayEnvelope) bool {
	select {
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Context cancelled, not sending envelope", slog.String("type", env.Type))
		return false
	case ch <- env:
		metrics.Get().EnvelopesEmittedTotal.Add(ctx, 1)
		return true
	}
}

// cleanJSONResponse strips markdown code fences and surrounding prose that
// models occasionally wrap around JSON-mode output.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(strings.TrimSpace(response), "```")
	response = strings.TrimSpace(response)

	firstBrace := strings.Index(response, "{")
	lastBrace := strings.LastIndex(response, "}")
	if firstBrace == -1 || lastBrace <= firstBrace {
		return response
	}
	return strings.TrimSpace(response[firstBrace : lastBrace+1])
}
