package attractions

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	generativeAI "github.com/FACorreiaa/go-city-adventures/internal/api/generative_ai"
	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

// MockChatClient is a mock implementation of the ChatClient interface
type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) Complete(ctx context.Context, req generativeAI.ChatRequest) (*generativeAI.ChatResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generativeAI.ChatResult), args.Error(1)
}

func (m *MockChatClient) CompleteStream(ctx context.Context, req generativeAI.ChatRequest) (generativeAI.ChatStream, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(generativeAI.ChatStream), args.Error(1)
}

func (m *MockChatClient) CheckCredential() error {
	args := m.Called()
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func markerCall(t *testing.T, name, description string, lon, lat float64) generativeAI.ToolCall {
	t.Helper()
	args, err := json.Marshal(map[string]any{
		"name":        name,
		"description": description,
		"longitude":   lon,
		"latitude":    lat,
	})
	require.NoError(t, err)
	return generativeAI.ToolCall{Name: "addMapMarker", Arguments: args}
}

func TestGetAttractions_ParsesToolCalls(t *testing.T) {
	mockChat := new(MockChatClient)
	mockChat.On("Complete", mock.Anything, mock.MatchedBy(func(req generativeAI.ChatRequest) bool {
		return len(req.Tools) == 1 && req.Tools[0].Name == "addMapMarker"
	})).Return(&generativeAI.ChatResult{
		ToolCalls: []generativeAI.ToolCall{
			markerCall(t, "Wat Arun", "Riverside temple", 100.4889, 13.7437),
			markerCall(t, "Grand Palace", "Royal complex", 100.4914, 13.7500),
			markerCall(t, "Chatuchak Market", "Weekend market", 100.5500, 13.7999),
		},
	}, nil).Once()

	service := NewServiceImpl(mockChat, 3, time.Minute, testLogger())
	got, err := service.GetAttractions(context.Background(), "Bangkok")

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Wat Arun", got[0].Name)
	assert.Equal(t, "Riverside temple", got[0].Description)
	assert.InDelta(t, 100.4889, got[0].Coordinates.Lon(), 1e-9)
	assert.InDelta(t, 13.7437, got[0].Coordinates.Lat(), 1e-9)

	mockChat.AssertExpectations(t)
}

func TestGetAttractions_SkipsMalformedCalls(t *testing.T) {
	mockChat := new(MockChatClient)
	mockChat.On("Complete", mock.Anything, mock.Anything).Return(&generativeAI.ChatResult{
		ToolCalls: []generativeAI.ToolCall{
			{Name: "addMapMarker", Arguments: json.RawMessage(`{not json`)},
			{Name: "someOtherTool", Arguments: json.RawMessage(`{}`)},
			markerCall(t, "Merlion Park", "Statue by the bay", 103.8545, 1.2868),
		},
	}, nil).Once()

	service := NewServiceImpl(mockChat, 3, time.Minute, testLogger())
	got, err := service.GetAttractions(context.Background(), "Singapore")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Merlion Park", got[0].Name)
}

func TestGetAttractions_EmptyBatch(t *testing.T) {
	mockChat := new(MockChatClient)
	mockChat.On("Complete", mock.Anything, mock.Anything).
		Return(&generativeAI.ChatResult{Text: "I could not find anything."}, nil).Once()

	service := NewServiceImpl(mockChat, 3, time.Minute, testLogger())
	got, err := service.GetAttractions(context.Background(), "Atlantis")

	// The batch is atomic: nothing usable means an error, never a partial set.
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Nil(t, got)
}

func TestGetAttractions_UpstreamError(t *testing.T) {
	upstreamErr := &types.UpstreamError{Status: 503, Body: "overloaded"}
	mockChat := new(MockChatClient)
	mockChat.On("Complete", mock.Anything, mock.Anything).Return(nil, upstreamErr).Once()

	service := NewServiceImpl(mockChat, 3, time.Minute, testLogger())
	_, err := service.GetAttractions(context.Background(), "Bangkok")

	var ue *types.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 503, ue.Status)
}

func TestGetAttractions_CachesByNormalizedCity(t *testing.T) {
	mockChat := new(MockChatClient)
	mockChat.On("Complete", mock.Anything, mock.Anything).Return(&generativeAI.ChatResult{
		ToolCalls: []generativeAI.ToolCall{
			markerCall(t, "Wat Arun", "Riverside temple", 100.4889, 13.7437),
		},
	}, nil).Once()

	service := NewServiceImpl(mockChat, 3, time.Minute, testLogger())

	first, err := service.GetAttractions(context.Background(), "Bangkok")
	require.NoError(t, err)

	// Same city with different casing and whitespace hits the cache.
	second, err := service.GetAttractions(context.Background(), "  bangkok ")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	mockChat.AssertNumberOfCalls(t, "Complete", 1)
}
