package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

var _ Classifier = (*Client)(nil)

// Client is the browser-side counterpart of the adventure server: it calls
// the HTTP endpoints and feeds relay streams through a Decoder into a Store.
type Client struct {
	logger  *slog.Logger
	http    *http.Client
	baseURL string
	store   *Store
	decoder *Decoder

	mu          sync.Mutex
	cancelDrain context.CancelFunc
	drainDone   chan struct{}
}

func NewClient(baseURL string, store *Store, logger *slog.Logger) *Client {
	return &Client{
		logger: logger,
		http: &http.Client{
			// No overall timeout: the adventure stream stays open for the
			// full generation. Per-request deadlines come from the context.
			Timeout: 0,
		},
		baseURL: baseURL,
		store:   store,
		decoder: NewDecoder(store, logger),
	}
}

// SuggestedCities fetches the curated starting cities.
func (c *Client) SuggestedCities(ctx context.Context) ([]types.City, error) {
	var out struct {
		Cities []types.City `json:"cities"`
	}
	if err := c.postJSON(ctx, http.MethodGet, "/cities", nil, &out); err != nil {
		return nil, err
	}
	return out.Cities, nil
}

// GetAttractions asks the server for attractions in the given city.
func (c *Client) GetAttractions(ctx context.Context, cityName string) ([]types.Attraction, error) {
	req := map[string]string{"city": cityName}
	var out struct {
		Attractions []types.Attraction `json:"attractions"`
	}
	if err := c.postJSON(ctx, http.MethodPost, "/attractions", req, &out); err != nil {
		return nil, err
	}
	return out.Attractions, nil
}

// StartAdventure resets the store, stops any drain still running from a
// previous adventure, and consumes the relay stream until it terminates.
// It blocks until the stream is drained or the context is cancelled; run it
// in its own goroutine to render cards as they arrive.
//
// The previous drain is not just cancelled but waited for: the store may only
// be reset once no other drain can still dispatch into it, otherwise lines
// buffered by the old decoder would leak into the new deck.
func (c *Client) StartAdventure(ctx context.Context, cityName string, attractions []types.Attraction) error {
	drainCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	prevCancel := c.cancelDrain
	prevDone := c.drainDone
	c.cancelDrain = cancel
	c.drainDone = done
	c.mu.Unlock()

	defer close(done)

	if prevCancel != nil {
		prevCancel()
	}
	if prevDone != nil {
		<-prevDone
	}

	c.store.Reset()

	body, err := json.Marshal(map[string]any{
		"city":        cityName,
		"attractions": attractions,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("encode adventure request: %w", err)
	}

	req, err := http.NewRequestWithContext(drainCtx, http.MethodPost, c.baseURL+"/adventure", bytes.NewReader(body))
	if err != nil {
		cancel()
		return fmt.Errorf("build adventure request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("start adventure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		cancel()
		return c.errorFromResponse(resp)
	}

	if err := c.decoder.Drain(drainCtx, resp.Body); err != nil {
		return fmt.Errorf("drain adventure stream: %w", err)
	}
	return nil
}

// StopAdventure cancels the drain of the current adventure stream, if any.
// The done channel stays registered so a later StartAdventure still waits for
// the cancelled drain to finish unwinding.
func (c *Client) StopAdventure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelDrain != nil {
		c.cancelDrain()
		c.cancelDrain = nil
	}
}

// AdditionalInfo opens the streamed facts endpoint for the given location.
// The returned reader yields plain-text fragments; the caller must close it.
func (c *Client) AdditionalInfo(ctx context.Context, location, cityName, userInput string) (io.ReadCloser, error) {
	body, err := json.Marshal(map[string]string{
		"location":  location,
		"city":      cityName,
		"userInput": userInput,
	})
	if err != nil {
		return nil, fmt.Errorf("encode facts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/additional-info", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build facts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch additional info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.errorFromResponse(resp)
	}
	return resp.Body, nil
}

// Classify delegates an unresolved utterance to the server's intent
// endpoint.
func (c *Client) Classify(ctx context.Context, input string, cardKind types.CardKind) (Decision, error) {
	req := map[string]string{
		"input":    input,
		"cardType": string(cardKind),
	}
	var out struct {
		Action       string `json:"action"`
		ResponseText string `json:"responseText"`
	}
	if err := c.postJSON(ctx, http.MethodPost, "/process-input", req, &out); err != nil {
		return Decision{}, err
	}

	switch Action(out.Action) {
	case ActionLearnMore, ActionNext, ActionOther:
		return Decision{Action: Action(out.Action), Response: out.ResponseText}, nil
	default:
		c.logger.Warn("Unknown action from intent endpoint, treating as other", slog.String("action", out.Action))
		return Decision{Action: ActionOther, Response: out.ResponseText}, nil
	}
}

// Transcribe sends recorded audio to the speech-to-text endpoint.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speech-to-text", &buf)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.errorFromResponse(resp)
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return out.Text, nil
}

// Synthesize converts text into MP3 audio via the text-to-speech endpoint.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("encode speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text-to-speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) postJSON(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request for %s: %w", path, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	var apiErr struct {
		Error string `json:"error"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
}
