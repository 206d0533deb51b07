package facts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	generativeAI "github.com/FACorreiaa/go-city-adventures/internal/api/generative_ai"
)

const factsSystemPrompt = "You are a knowledgeable travel guide that provides interesting and factual information about landmarks and locations."

var _ Service = (*ServiceImpl)(nil)

// Service opens one streamed completion about a location. Fragments are
// relayed by the handler without any buffering beyond single-fragment decode.
type Service interface {
	StreamFacts(ctx context.Context, location, city, userInput string) (generativeAI.ChatStream, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	chat   generativeAI.ChatClient
}

func NewServiceImpl(chat generativeAI.ChatClient, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		chat:   chat,
	}
}

func (s *ServiceImpl) StreamFacts(ctx context.Context, location, city, userInput string) (generativeAI.ChatStream, error) {
	ctx, span := otel.Tracer("FactsService").Start(ctx, "StreamFacts", trace.WithAttributes(
		attribute.String("location", location),
		attribute.String("city.name", city),
		attribute.Bool("has_user_input", strings.TrimSpace(userInput) != ""),
	))
	defer span.End()

	stream, err := s.chat.CompleteStream(ctx, generativeAI.ChatRequest{
		System: factsSystemPrompt,
		Prompt: getFactsPrompt(location, city, userInput),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to open fact stream")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Fact stream opened")
	return stream, nil
}

// getFactsPrompt asks for a single fact, or answers the user's question when
// one was supplied.
func getFactsPrompt(location, city, userInput string) string {
	if strings.TrimSpace(userInput) != "" {
		return fmt.Sprintf(`The user asked: %q about %s in %s.
Respond directly to their question with relevant information.
If they're asking for general information, provide 1 interesting fact about this location.`, userInput, location, city)
	}
	return fmt.Sprintf("Provide 1 interesting fact about %s in %s.", location, city)
}
