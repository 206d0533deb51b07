package generativeAI

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-city-adventures/app/observability/metrics"
	"github.com/FACorreiaa/go-city-adventures/config"
	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

var _ ChatClient = (*OpenAIClient)(nil)
var _ MediaClient = (*OpenAIClient)(nil)

// OpenAIClient talks to an OpenAI-compatible REST API for all four upstream
// capabilities: chat completion, image generation, transcription and speech
// synthesis.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	chatModel       string
	imageModel      string
	imageSize       string
	transcribeModel string
	speechModel     string
	speechVoice     string

	logger *slog.Logger
}

func NewOpenAIClient(cfg config.Config, apiKey string, logger *slog.Logger) *OpenAIClient {
	return &OpenAIClient{
		httpClient:      &http.Client{Timeout: 120 * time.Second},
		baseURL:         strings.TrimSuffix(cfg.Provider.BaseURL, "/"),
		apiKey:          apiKey,
		chatModel:       cfg.Provider.ChatModel,
		imageModel:      cfg.Provider.ImageModel,
		imageSize:       cfg.Provider.ImageSize,
		transcribeModel: cfg.Provider.TranscribeModel,
		speechModel:     cfg.Provider.SpeechModel,
		speechVoice:     cfg.Provider.SpeechVoice,
		logger:          logger,
	}
}

// CheckCredential reports whether the API key is configured, without issuing
// any network call.
func (c *OpenAIClient) CheckCredential() error {
	if c.apiKey == "" {
		return types.ErrMissingCredential
	}
	return nil
}

// --- wire shapes (OpenAI chat completions format) ---

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
	Tools          []openAITool          `json:"tools,omitempty"`
	ToolChoice     string                `json:"tool_choice,omitempty"`
	Stream         bool                  `json:"stream,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *OpenAIClient) buildChatRequest(req ChatRequest, stream bool) openAIChatRequest {
	var messages []openAIMessage
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	oreq := openAIChatRequest{
		Model:    c.chatModel,
		Messages: messages,
		Stream:   stream,
	}
	if req.JSONMode {
		oreq.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}
	for _, tool := range req.Tools {
		oreq.Tools = append(oreq.Tools, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	if len(oreq.Tools) > 0 {
		oreq.ToolChoice = "auto"
	}
	return oreq
}

// post issues one JSON POST and returns the raw response. Non-2xx statuses are
// converted to *types.UpstreamError with the raw body attached.
func (c *OpenAIClient) post(ctx context.Context, capability, path string, payload any) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, types.ErrMissingCredential
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", capability, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	m := metrics.Get()
	m.UpstreamCallDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		m.UpstreamCallErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("%s call failed: %w", capability, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		resp.Body.Close()
		m.UpstreamCallErrorsTotal.Add(ctx, 1)
		c.logger.ErrorContext(ctx, "Upstream provider returned error",
			slog.String("capability", capability),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(raw)))
		return nil, &types.UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	return resp, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "OpenAIComplete", trace.WithAttributes(
		attribute.String("chat.model", c.chatModel),
		attribute.Bool("chat.json_mode", req.JSONMode),
		attribute.Int("chat.tools", len(req.Tools)),
	))
	defer span.End()

	resp, err := c.post(ctx, "chat", "/chat/completions", c.buildChatRequest(req, false))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Chat completion failed")
		return nil, err
	}
	defer resp.Body.Close()

	var oresp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oresp); err != nil {
		span.RecordError(err)
		return nil, &types.ProtocolError{Op: "chat completion decode", Err: err}
	}
	if len(oresp.Choices) == 0 {
		err := &types.UpstreamError{Status: resp.StatusCode, Body: "response contained no choices"}
		span.RecordError(err)
		return nil, err
	}

	result := &ChatResult{Text: oresp.Choices[0].Message.Content}
	for _, tc := range oresp.Choices[0].Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	span.SetStatus(codes.Ok, "Chat completion succeeded")
	return result, nil
}

func (c *OpenAIClient) CompleteStream(ctx context.Context, req ChatRequest) (ChatStream, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "OpenAICompleteStream", trace.WithAttributes(
		attribute.String("chat.model", c.chatModel),
		attribute.Bool("chat.json_mode", req.JSONMode),
	))
	defer span.End()

	resp, err := c.post(ctx, "chat_stream", "/chat/completions", c.buildChatRequest(req, true))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Chat stream open failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Chat stream opened")
	return &sseStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

// sseStream decodes the provider's server-sent-event framing: one JSON chunk
// per "data:" line, terminated by the literal "[DONE]".
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *sseStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", &types.ProtocolError{Op: "stream event decode", Err: err}
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	s.done = true
	return "", io.EOF
}

func (s *sseStream) Close() error {
	s.done = true
	return s.body.Close()
}

func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateImage", trace.WithAttributes(
		attribute.String("image.model", c.imageModel),
	))
	defer span.End()

	payload := map[string]any{
		"model":  c.imageModel,
		"prompt": prompt,
		"n":      1,
		"size":   c.imageSize,
	}
	resp, err := c.post(ctx, "image", "/images/generations", payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Image generation failed")
		return "", err
	}
	defer resp.Body.Close()

	var iresp struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&iresp); err != nil {
		span.RecordError(err)
		return "", &types.ProtocolError{Op: "image response decode", Err: err}
	}
	if len(iresp.Data) == 0 || iresp.Data[0].URL == "" {
		err := &types.UpstreamError{Status: resp.StatusCode, Body: "image response contained no result"}
		span.RecordError(err)
		return "", err
	}
	span.SetStatus(codes.Ok, "Image generated")
	return iresp.Data[0].URL, nil
}

func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Transcribe", trace.WithAttributes(
		attribute.String("transcribe.model", c.transcribeModel),
		attribute.Int("audio.bytes", len(audio)),
	))
	defer span.End()

	if c.apiKey == "" {
		span.SetStatus(codes.Error, "Missing credential")
		return "", types.ErrMissingCredential
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", c.transcribeModel); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	m := metrics.Get()
	m.UpstreamCallDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		m.UpstreamCallErrorsTotal.Add(ctx, 1)
		span.RecordError(err)
		return "", fmt.Errorf("transcription call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		m.UpstreamCallErrorsTotal.Add(ctx, 1)
		span.SetStatus(codes.Error, "Transcription failed")
		return "", &types.UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	var tresp struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tresp); err != nil {
		span.RecordError(err)
		return "", &types.ProtocolError{Op: "transcription response decode", Err: err}
	}
	span.SetStatus(codes.Ok, "Audio transcribed")
	return tresp.Text, nil
}

func (c *OpenAIClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Synthesize", trace.WithAttributes(
		attribute.String("speech.model", c.speechModel),
		attribute.String("speech.voice", c.speechVoice),
	))
	defer span.End()

	payload := map[string]any{
		"model": c.speechModel,
		"voice": c.speechVoice,
		"input": text,
	}
	resp, err := c.post(ctx, "speech", "/audio/speech", payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Speech synthesis failed")
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	span.SetStatus(codes.Ok, "Speech synthesized")
	return audio, nil
}
