package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	generativeAI "github.com/FACorreiaa/go-city-adventures/internal/api/generative_ai"
	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

// Actions the classifier may return on the wire.
const (
	ActionLearnMore = "learn_more"
	ActionNext      = "next"
	ActionOther     = "other"
)

// Result is the classification outcome for one utterance.
type Result struct {
	Action       string `json:"action"`
	ResponseText string `json:"responseText"`
}

var _ Service = (*ServiceImpl)(nil)

// Service classifies a free-form utterance against the card the user is
// currently viewing.
type Service interface {
	ClassifyInput(ctx context.Context, input string, cardKind types.CardKind) (*Result, error)
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

// ClassifyInput streams a JSON-mode completion and buffers every fragment
// before parsing: unlike the fact relay, nothing can be forwarded early
// because the result is a single JSON object.
func (s *ServiceImpl) ClassifyInput(ctx context.Context, input string, cardKind types.CardKind) (*Result, error) {
	ctx, span := otel.Tracer("IntentService").Start(ctx, "ClassifyInput", trace.WithAttributes(
		attribute.String("card.kind", string(cardKind)),
	))
	defer span.End()

	stream, err := s.chat.CompleteStream(ctx, generativeAI.ChatRequest{
		System:   getIntentSystemPrompt(cardKind),
		Prompt:   input,
		JSONMode: true,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to open classification stream")
		return nil, err
	}
	defer stream.Close()

	var buf strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Classification stream failed")
			return nil, err
		}
		buf.WriteString(fragment)
	}

	var result Result
	if err := json.Unmarshal([]byte(buf.String()), &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Classification parse failed")
		return nil, &types.ProtocolError{Op: "intent classification parse", Err: err}
	}

	s.logger.DebugContext(ctx, "Classified user input", slog.String("action", result.Action))
	span.SetStatus(codes.Ok, "Input classified")
	return &result, nil
}

func getIntentSystemPrompt(cardKind types.CardKind) string {
	return fmt.Sprintf(`You are an AI assistant that processes user input for a mystery adventure game and returns JSON.
The user is currently viewing a %s card.
Determine if the user wants to:
1. Learn more about the current location (action: learn_more)
2. Move to the next card (action: next)
3. Something else (action: other)

Also generate a helpful response to the user's input that acknowledges what they said.

Return a JSON object with:
1. The determined action
2. A response text that directly addresses the user's input in a conversational way

Example response format:
{
  "action": "learn_more",
  "responseText": "I'd be happy to tell you more about this landmark! Here's some additional information..."
}`, cardKind)
}
