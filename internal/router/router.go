package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/FACorreiaa/go-city-adventures/internal/api/adventure"
	"github.com/FACorreiaa/go-city-adventures/internal/api/attractions"
	"github.com/FACorreiaa/go-city-adventures/internal/api/city"
	"github.com/FACorreiaa/go-city-adventures/internal/api/facts"
	"github.com/FACorreiaa/go-city-adventures/internal/api/intent"
	"github.com/FACorreiaa/go-city-adventures/internal/api/speech"
)

// Config contains dependencies needed for the router setup.
type Config struct {
	CityHandler        *city.Handler
	AttractionsHandler *attractions.Handler
	AdventureHandler   *adventure.Handler
	FactsHandler       *facts.Handler
	IntentHandler      *intent.Handler
	SpeechHandler      *speech.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are expected to be
// applied before mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Get("/cities", cfg.CityHandler.GetSuggestedCities)
	r.Post("/attractions", cfg.AttractionsHandler.GetAttractions)
	r.Post("/adventure", cfg.AdventureHandler.GenerateAdventure)
	r.Post("/additional-info", cfg.FactsHandler.StreamFacts)
	r.Post("/process-input", cfg.IntentHandler.ProcessInput)
	r.Post("/speech-to-text", cfg.SpeechHandler.SpeechToText)
	r.Post("/text-to-speech", cfg.SpeechHandler.TextToSpeech)

	return r
}
