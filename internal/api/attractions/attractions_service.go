package attractions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	generativeAI "github.com/FACorreiaa/go-city-adventures/internal/api/generative_ai"
	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

// ErrEmptyBatch means the model produced no usable attraction markers. The
// batch is atomic: the caller gets either the full set or this error.
var ErrEmptyBatch = errors.New("failed to get any attractions with coordinates")

var _ Service = (*ServiceImpl)(nil)

// Service resolves a city name into an atomic batch of attractions.
type Service interface {
	GetAttractions(ctx context.Context, city string) ([]types.Attraction, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	chat   generativeAI.ChatClient
	cache  *cache.Cache
	count  int
}

func NewServiceImpl(chat generativeAI.ChatClient, count int, cacheTTL time.Duration, logger *slog.Logger) *ServiceImpl {
	if count <= 0 {
		count = 3
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &ServiceImpl{
		logger: logger,
		chat:   chat,
		cache:  cache.New(cacheTTL, 10*time.Minute),
		count:  count,
	}
}

// markerArgs is the JSON argument payload of one addMapMarker tool call.
type markerArgs struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
}

func (s *ServiceImpl) GetAttractions(ctx context.Context, city string) ([]types.Attraction, error) {
	ctx, span := otel.Tracer("AttractionsService").Start(ctx, "GetAttractions", trace.WithAttributes(
		attribute.String("city.name", city),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "GetAttractions"), slog.String("city", city))

	cacheKey := attractionsCacheKey(city)
	if cached, found := s.cache.Get(cacheKey); found {
		if batch, ok := cached.([]types.Attraction); ok {
			l.DebugContext(ctx, "Attractions served from cache", slog.Int("count", len(batch)))
			span.SetStatus(codes.Ok, "Cache hit")
			return batch, nil
		}
	}

	result, err := s.chat.Complete(ctx, generativeAI.ChatRequest{
		System: attractionsSystemPrompt,
		Prompt: getAttractionsPrompt(city, s.count),
		Tools:  []generativeAI.ToolDeclaration{addMapMarkerTool()},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Chat completion failed")
		return nil, err
	}

	batch := make([]types.Attraction, 0, s.count)
	for _, call := range result.ToolCalls {
		if call.Name != "addMapMarker" {
			continue
		}
		var args markerArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			// A single bad tool call is skipped; the batch fails only when
			// nothing parses at all.
			l.WarnContext(ctx, "Skipping malformed tool call arguments", slog.Any("error", err))
			continue
		}
		batch = append(batch, types.Attraction{
			Name:        args.Name,
			Description: args.Description,
			Coordinates: types.Coordinates{args.Longitude, args.Latitude},
		})
	}

	if len(batch) == 0 {
		span.SetStatus(codes.Error, "Empty attraction batch")
		return nil, fmt.Errorf("%w for %s", ErrEmptyBatch, city)
	}

	s.cache.Set(cacheKey, batch, cache.DefaultExpiration)
	l.InfoContext(ctx, "Resolved attractions", slog.Int("count", len(batch)))
	span.SetStatus(codes.Ok, "Attractions resolved")
	return batch, nil
}

func attractionsCacheKey(city string) string {
	return "attractions:" + strings.ToLower(strings.TrimSpace(city))
}
