package generativeAI

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"google.golang.org/genai"

	"github.com/FACorreiaa/go-city-adventures/config"
	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

var _ ChatClient = (*GeminiClient)(nil)

// GeminiClient is the alternate chat backend, driven through the Google genai
// SDK. Image and audio capabilities stay on the OpenAI client.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewGeminiClient(ctx context.Context, cfg config.Config, apiKey string, logger *slog.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, types.ErrMissingCredential
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{
		client: client,
		model:  cfg.Provider.GeminiModel,
		logger: logger,
	}, nil
}

// CheckCredential always succeeds: the constructor refuses to build a client
// without a key.
func (c *GeminiClient) CheckCredential() error { return nil }

func (c *GeminiClient) buildConfig(req ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}
	if len(req.Tools) > 0 {
		var decls []*genai.FunctionDeclaration
		for _, tool := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaFromJSON(tool.Parameters),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

func (c *GeminiClient) Complete(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), c.buildConfig(req))
	if err != nil {
		return nil, &types.UpstreamError{Status: 0, Body: err.Error()}
	}

	result := &ChatResult{Text: resp.Text()}
	for _, call := range resp.FunctionCalls() {
		args, err := json.Marshal(call.Args)
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping unmarshalable function call", slog.String("name", call.Name), slog.Any("error", err))
			continue
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{Name: call.Name, Arguments: args})
	}
	return result, nil
}

func (c *GeminiClient) CompleteStream(ctx context.Context, req ChatRequest) (ChatStream, error) {
	seq := c.client.Models.GenerateContentStream(ctx, c.model, genai.Text(req.Prompt), c.buildConfig(req))
	next, stop := iter.Pull2(seq)
	return &geminiStream{next: next, stop: stop}, nil
}

// geminiStream adapts the SDK's push iterator to the pull-based ChatStream.
type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
	done bool
}

func (s *geminiStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		resp, err, ok := s.next()
		if !ok {
			s.done = true
			return "", io.EOF
		}
		if err != nil {
			s.done = true
			return "", &types.UpstreamError{Status: 0, Body: err.Error()}
		}
		if text := resp.Text(); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error {
	s.done = true
	s.stop()
	return nil
}

// schemaFromJSON converts an OpenAI-style JSON schema object into the genai
// schema type. Only the subset the tool declarations use is mapped: object,
// string and number properties with descriptions and required fields.
func schemaFromJSON(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{Type: genaiType(schema["type"])}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if prop, ok := raw.(map[string]any); ok {
				out.Properties[name] = schemaFromJSON(prop)
			}
		}
	}
	if required, ok := schema["required"].([]string); ok {
		out.Required = required
	} else if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if name, ok := r.(string); ok {
				out.Required = append(out.Required, name)
			}
		}
	}
	return out
}

func genaiType(t any) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}
