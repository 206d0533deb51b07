package city

import (
	"context"
	"log/slog"

	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service provides the curated set of starting cities shown on the map
// before the user picks a destination.
type Service interface {
	GetSuggestedCities(ctx context.Context) []types.City
}

type ServiceImpl struct {
	logger *slog.Logger
	cities []types.City
}

func NewServiceImpl(logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		cities: []types.City{
			{Name: "Singapore", Coordinates: types.Coordinates{103.8198, 1.3521}},
			{Name: "Bangkok", Coordinates: types.Coordinates{100.5018, 13.7563}},
			{Name: "Jakarta", Coordinates: types.Coordinates{106.8456, -6.2088}},
			{Name: "Ho Chi Minh City", Coordinates: types.Coordinates{106.6297, 10.8231}},
		},
	}
}

func (s *ServiceImpl) GetSuggestedCities(_ context.Context) []types.City {
	out := make([]types.City, len(s.cities))
	copy(out, s.cities)
	return out
}
