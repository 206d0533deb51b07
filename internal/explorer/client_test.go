package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

func TestClient_StartAdventureDrainsIntoStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/adventure", r.URL.Path)

		var req struct {
			City        string             `json:"city"`
			Attractions []types.Attraction `json:"attractions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Singapore", req.City)
		require.Len(t, req.Attractions, 1)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, env := range []types.RelayEnvelope{
			types.CardEnvelope(card(0, "Marina Bay Sands")),
			types.CardEnvelope(card(1, "A Torn Map")),
			types.ImageEnvelope("card-0", "https://img.test/0.png"),
			types.ImageErrorEnvelope("card-1"),
			types.CompleteEnvelope(),
		} {
			data, err := json.Marshal(env)
			require.NoError(t, err)
			fmt.Fprintf(w, "%s\n", data)
			flusher.Flush()
		}
	}))
	defer server.Close()

	store := NewStore(testLogger())
	client := NewClient(server.URL, store, testLogger())

	attractions := []types.Attraction{{Name: "Marina Bay Sands", Coordinates: types.Coordinates{103.8607, 1.2834}}}
	require.NoError(t, client.StartAdventure(context.Background(), "Singapore", attractions))

	cards := store.Cards()
	require.Len(t, cards, 2)
	assert.Equal(t, types.ImageReady, cards[0].ImageStatus)
	assert.Equal(t, types.ImageFailed, cards[1].ImageStatus)
	assert.True(t, store.Complete())
}

func TestClient_StartAdventureResetsPreviousState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := json.Marshal(types.CardEnvelope(card(0, "Fresh Start")))
		fmt.Fprintf(w, "%s\n", data)
		data, _ = json.Marshal(types.CompleteEnvelope())
		fmt.Fprintf(w, "%s\n", data)
	}))
	defer server.Close()

	store := NewStore(testLogger())
	store.OnCard(card(0, "Stale"))
	store.OnCard(card(1, "Stale"))
	store.Advance()

	client := NewClient(server.URL, store, testLogger())
	require.NoError(t, client.StartAdventure(context.Background(), "Bangkok", []types.Attraction{{Name: "Wat Arun"}}))

	cards := store.Cards()
	require.Len(t, cards, 1)
	assert.Equal(t, "Fresh Start", cards[0].Title)
	assert.Equal(t, 0, store.ActiveIndex())
}

func TestClient_RestartMidStreamKeepsOnlyNewCards(t *testing.T) {
	// The first stream emits one visible card, then a large burst that sits
	// in the decoder's read buffer, then blocks without terminating. A
	// restart issued at that point must stop the old drain completely: none
	// of the buffered old cards may land in the deck after the reset.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			City string `json:"city"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		flusher := w.(http.Flusher)

		if req.City == "Old Town" {
			data, err := json.Marshal(types.CardEnvelope(types.AdventureCard{
				ID: "old-0", Kind: types.CardKindLandmark,
				Title: "Old Town", Content: "stale", ImageStatus: types.ImagePending,
			}))
			require.NoError(t, err)
			fmt.Fprintf(w, "%s\n", data)
			flusher.Flush()

			var burst bytes.Buffer
			for i := 1; i <= 500; i++ {
				data, err := json.Marshal(types.CardEnvelope(types.AdventureCard{
					ID: fmt.Sprintf("old-%d", i), Kind: types.KindForSlot(i),
					Title: "Old Town", Content: "stale", ImageStatus: types.ImagePending,
				}))
				require.NoError(t, err)
				fmt.Fprintf(&burst, "%s\n", data)
			}
			w.Write(burst.Bytes())
			flusher.Flush()

			// Hold the stream open until the client abandons it.
			<-r.Context().Done()
			return
		}

		data, err := json.Marshal(types.CardEnvelope(types.AdventureCard{
			ID: "card-0", Kind: types.CardKindLandmark,
			Title: "Fresh Harbor", Content: "new", ImageStatus: types.ImagePending,
		}))
		require.NoError(t, err)
		fmt.Fprintf(w, "%s\n", data)
		data, err = json.Marshal(types.CompleteEnvelope())
		require.NoError(t, err)
		fmt.Fprintf(w, "%s\n", data)
		flusher.Flush()
	}))
	defer server.Close()

	store := NewStore(testLogger())
	client := NewClient(server.URL, store, testLogger())

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- client.StartAdventure(context.Background(), "Old Town", []types.Attraction{{Name: "Clock Tower"}})
	}()

	// Restart only once the old drain is demonstrably mid-stream.
	require.Eventually(t, func() bool { return len(store.Cards()) > 0 },
		5*time.Second, 5*time.Millisecond)

	require.NoError(t, client.StartAdventure(context.Background(), "Fresh Harbor", []types.Attraction{{Name: "Lighthouse"}}))

	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("abandoned drain did not exit")
	}

	cards := store.Cards()
	require.Len(t, cards, 1)
	assert.Equal(t, "Fresh Harbor", cards[0].Title)
	assert.True(t, store.Complete())
}

func TestClient_StartAdventureServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "provider API key is not configured on the server"})
	}))
	defer server.Close()

	store := NewStore(testLogger())
	client := NewClient(server.URL, store, testLogger())

	err := client.StartAdventure(context.Background(), "Singapore", []types.Attraction{{Name: "Merlion Park"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider API key is not configured")
	assert.Empty(t, store.Cards())
}

func TestClient_SuggestedCities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/cities", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"cities": []types.City{
				{Name: "Singapore", Coordinates: types.Coordinates{103.8198, 1.3521}},
				{Name: "Bangkok", Coordinates: types.Coordinates{100.5018, 13.7563}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, NewStore(testLogger()), testLogger())
	cities, err := client.SuggestedCities(context.Background())

	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, "Singapore", cities[0].Name)
	assert.InDelta(t, 103.8198, cities[0].Coordinates.Lon(), 1e-9)
}

func TestClient_GetAttractions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/attractions", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Jakarta", req["city"])
		json.NewEncoder(w).Encode(map[string]any{
			"attractions": []types.Attraction{
				{Name: "Monas", Description: "National monument", Coordinates: types.Coordinates{106.8272, -6.1754}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, NewStore(testLogger()), testLogger())
	got, err := client.GetAttractions(context.Background(), "Jakarta")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Monas", got[0].Name)
}

func TestClient_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/process-input", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is that tower?", req["input"])
		assert.Equal(t, "landmark", req["cardType"])
		json.NewEncoder(w).Encode(map[string]string{
			"action":       "other",
			"responseText": "That is the Sky Tower.",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, NewStore(testLogger()), testLogger())
	decision, err := client.Classify(context.Background(), "what is that tower?", types.CardKindLandmark)

	require.NoError(t, err)
	assert.Equal(t, ActionOther, decision.Action)
	assert.Equal(t, "That is the Sky Tower.", decision.Response)
}

func TestClient_ClassifyUnknownActionFallsBackToOther(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"action": "dance", "responseText": "hm"})
	}))
	defer server.Close()

	client := NewClient(server.URL, NewStore(testLogger()), testLogger())
	decision, err := client.Classify(context.Background(), "boogie", types.CardKindClue)

	require.NoError(t, err)
	assert.Equal(t, ActionOther, decision.Action)
}

func TestClient_AdditionalInfoStreamsFragments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/additional-info", r.URL.Path)
		flusher := w.(http.Flusher)
		for _, fragment := range []string{"Marina Bay Sands ", "opened ", "in 2010."} {
			fmt.Fprint(w, fragment)
			flusher.Flush()
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, NewStore(testLogger()), testLogger())
	body, err := client.AdditionalInfo(context.Background(), "Marina Bay Sands", "Singapore", "")
	require.NoError(t, err)
	defer body.Close()

	text, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "Marina Bay Sands opened in 2010.", string(text))
}

func TestClient_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/speech-to-text", r.URL.Path)
		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "clip.webm", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("fake audio"), data)
		json.NewEncoder(w).Encode(map[string]string{"text": "next clue"})
	}))
	defer server.Close()

	client := NewClient(server.URL, NewStore(testLogger()), testLogger())
	text, err := client.Transcribe(context.Background(), []byte("fake audio"), "clip.webm")

	require.NoError(t, err)
	assert.Equal(t, "next clue", text)
}

func TestClient_Synthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/text-to-speech", r.URL.Path)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3 bytes"))
	}))
	defer server.Close()

	client := NewClient(server.URL, NewStore(testLogger()), testLogger())
	audio, err := client.Synthesize(context.Background(), "The story begins.")

	require.NoError(t, err)
	assert.Equal(t, []byte("mp3 bytes"), audio)
}
