package generativeAI

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/go-city-adventures/config"
)

// ChatRequest describes one chat completion call to the upstream provider.
// System and Prompt map to the system and user messages; the flags select the
// response shape.
type ChatRequest struct {
	System   string
	Prompt   string
	JSONMode bool
	Tools    []ToolDeclaration
}

// ToolDeclaration advertises one callable function to the model. Parameters is
// a JSON-schema object in the provider's declaration format.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is one structured function invocation returned by the model.
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

// ChatResult is the outcome of a non-streamed chat completion: plain text,
// pre-validated JSON text (when JSONMode was set), or a list of tool calls.
type ChatResult struct {
	Text      string
	ToolCalls []ToolCall
}

// ChatStream is a finite, non-restartable sequence of incremental text
// fragments. Recv returns io.EOF after the provider's terminator; Close
// releases the underlying connection and is safe to call more than once.
type ChatStream interface {
	Recv() (string, error)
	Close() error
}

// ChatClient is the chat-completion capability of the upstream provider.
// CheckCredential reports types.ErrMissingCredential without any network
// traffic, so streaming handlers can fail with a proper status code before
// committing response headers.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResult, error)
	CompleteStream(ctx context.Context, req ChatRequest) (ChatStream, error)
	CheckCredential() error
}

// MediaClient covers the provider's non-chat capabilities: image generation,
// speech-to-text and text-to-speech.
type MediaClient interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
	CheckCredential() error
}

// NewChatClient selects the configured chat backend. Image and audio always go
// through the OpenAI client regardless of the chat backend.
func NewChatClient(ctx context.Context, cfg config.Config, openAIKey, geminiKey string, logger *slog.Logger) (ChatClient, error) {
	switch cfg.Provider.ChatBackend {
	case "", "openai":
		return NewOpenAIClient(cfg, openAIKey, logger), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg, geminiKey, logger)
	default:
		return nil, fmt.Errorf("unknown chat backend %q", cfg.Provider.ChatBackend)
	}
}
