package generativeAI

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-city-adventures/config"
	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var cfg config.Config
	cfg.Provider.BaseURL = server.URL
	cfg.Provider.ChatModel = "gpt-4o"
	cfg.Provider.ImageModel = "dall-e-2"
	cfg.Provider.ImageSize = "1024x1024"
	cfg.Provider.TranscribeModel = "whisper-1"
	cfg.Provider.SpeechModel = "tts-1"
	cfg.Provider.SpeechVoice = "alloy"

	return NewOpenAIClient(cfg, "test-key", testLogger()), server
}

func TestOpenAIComplete_TextAndToolCalls(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "auto", req.ToolChoice)

		fmt.Fprint(w, `{"choices":[{"message":{"content":"done","tool_calls":[
			{"function":{"name":"addMapMarker","arguments":"{\"name\":\"Wat Arun\",\"longitude\":100.4889,\"latitude\":13.7437}"}}
		]}}]}`)
	})

	result, err := client.Complete(context.Background(), ChatRequest{
		System: "You are a guide.",
		Prompt: "Find attractions in Bangkok",
		Tools: []ToolDeclaration{{
			Name:       "addMapMarker",
			Parameters: map[string]any{"type": "object"},
		}},
	})

	require.NoError(t, err)
	assert.Equal(t, "done", result.Text)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "addMapMarker", result.ToolCalls[0].Name)

	var args map[string]any
	require.NoError(t, json.Unmarshal(result.ToolCalls[0].Arguments, &args))
	assert.Equal(t, "Wat Arun", args["name"])
}

func TestOpenAIComplete_JSONModeSetsResponseFormat(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{}"}}]}`)
	})

	_, err := client.Complete(context.Background(), ChatRequest{Prompt: "p", JSONMode: true})
	require.NoError(t, err)
}

func TestOpenAIComplete_UpstreamError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	})

	_, err := client.Complete(context.Background(), ChatRequest{Prompt: "p"})

	var ue *types.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusTooManyRequests, ue.Status)
	assert.Contains(t, ue.Body, "rate limited")
}

func TestOpenAIComplete_MissingCredential(t *testing.T) {
	var cfg config.Config
	cfg.Provider.BaseURL = "http://localhost:1"
	client := NewOpenAIClient(cfg, "", testLogger())

	require.ErrorIs(t, client.CheckCredential(), types.ErrMissingCredential)

	// The key check fires before any network traffic.
	_, err := client.Complete(context.Background(), ChatRequest{Prompt: "p"})
	require.ErrorIs(t, err, types.ErrMissingCredential)

	_, err = client.GenerateImage(context.Background(), "p")
	require.ErrorIs(t, err, types.ErrMissingCredential)

	_, err = client.Transcribe(context.Background(), []byte("audio"), "a.webm")
	require.ErrorIs(t, err, types.ErrMissingCredential)

	_, err = client.Synthesize(context.Background(), "text")
	require.ErrorIs(t, err, types.ErrMissingCredential)
}

func TestOpenAICompleteStream_Fragments(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Marina \"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive comment\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Bay \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Sands\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := client.CompleteStream(context.Background(), ChatRequest{Prompt: "p"})
	require.NoError(t, err)
	defer stream.Close()

	var got string
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got += fragment
	}
	assert.Equal(t, "Marina Bay Sands", got)

	// Recv after the terminator stays at EOF.
	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestOpenAICompleteStream_MalformedChunk(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {not valid json}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := client.CompleteStream(context.Background(), ChatRequest{Prompt: "p"})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	var pe *types.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "stream event decode", pe.Op)
}

func TestOpenAIGenerateImage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images/generations", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "dall-e-2", req["model"])
		assert.Equal(t, "1024x1024", req["size"])
		assert.Equal(t, float64(1), req["n"])
		fmt.Fprint(w, `{"data":[{"url":"https://img.test/generated.png"}]}`)
	})

	url, err := client.GenerateImage(context.Background(), "A stylized image of Wat Arun in Bangkok.")
	require.NoError(t, err)
	assert.Equal(t, "https://img.test/generated.png", url)
}

func TestOpenAIGenerateImage_EmptyResult(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	})

	_, err := client.GenerateImage(context.Background(), "prompt")
	var ue *types.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Body, "no result")
}

func TestOpenAITranscribe(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "clip.webm", header.Filename)
		fmt.Fprint(w, `{"text":"show me the next clue"}`)
	})

	text, err := client.Transcribe(context.Background(), []byte("fake audio"), "clip.webm")
	require.NoError(t, err)
	assert.Equal(t, "show me the next clue", text)
}

func TestOpenAISynthesize(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/speech", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tts-1", req["model"])
		assert.Equal(t, "alloy", req["voice"])
		assert.Equal(t, "The story begins.", req["input"])
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3 bytes"))
	})

	audio, err := client.Synthesize(context.Background(), "The story begins.")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3 bytes"), audio)
}
