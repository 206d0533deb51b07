package explorer

import (
	"log/slog"
	"sync"

	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

var _ Sink = (*Store)(nil)

// Store holds the state of the adventure in progress: the ordered deck of
// cards, the index of the card currently shown, and the outcome of the relay
// stream. It implements Sink so a Decoder can feed it directly.
//
// Cards are append-only for the lifetime of one adventure. Image updates are
// keyed by card id, never by position, so they apply correctly regardless of
// arrival order.
type Store struct {
	mu     sync.RWMutex
	logger *slog.Logger

	cards  []types.AdventureCard
	byID   map[string]int
	active int

	complete  bool
	streamErr string
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger: logger,
		byID:   make(map[string]int),
	}
}

// Reset clears all adventure state. Called before starting a new adventure.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards = nil
	s.byID = make(map[string]int)
	s.active = 0
	s.complete = false
	s.streamErr = ""
}

func (s *Store) OnCard(card types.AdventureCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[card.ID]; exists {
		s.logger.Warn("Ignoring duplicate card id", slog.String("cardId", card.ID))
		return
	}
	s.byID[card.ID] = len(s.cards)
	s.cards = append(s.cards, card)
}

func (s *Store) OnImage(cardID, imageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[cardID]
	if !ok {
		s.logger.Warn("Image update for unknown card id", slog.String("cardId", cardID))
		return
	}
	s.cards[idx].ImageURL = imageURL
	s.cards[idx].ImageStatus = types.ImageReady
}

func (s *Store) OnImageError(cardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[cardID]
	if !ok {
		s.logger.Warn("Image failure for unknown card id", slog.String("cardId", cardID))
		return
	}
	s.cards[idx].ImageStatus = types.ImageFailed
}

func (s *Store) OnComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complete = true
}

func (s *Store) OnStreamError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamErr = message
}

// Cards returns a copy of the current deck in emission order.
func (s *Store) Cards() []types.AdventureCard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.AdventureCard, len(s.cards))
	copy(out, s.cards)
	return out
}

// Card returns the card with the given id, if present.
func (s *Store) Card(cardID string) (types.AdventureCard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[cardID]
	if !ok {
		return types.AdventureCard{}, false
	}
	return s.cards[idx], true
}

// ActiveIndex returns the index of the card currently shown.
func (s *Store) ActiveIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ActiveCard returns the card currently shown, if the deck is non-empty.
func (s *Store) ActiveCard() (types.AdventureCard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.cards) == 0 {
		return types.AdventureCard{}, false
	}
	return s.cards[s.active], true
}

// Advance moves to the next card. At the last card it is a no-op and
// reports false.
func (s *Store) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active >= len(s.cards)-1 {
		return false
	}
	s.active++
	return true
}

// Prev moves to the previous card. At the first card it is a no-op and
// reports false.
func (s *Store) Prev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active <= 0 {
		return false
	}
	s.active--
	return true
}

// GoTo jumps directly to the card at index i. Out-of-range indices are
// ignored.
func (s *Store) GoTo(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.cards) {
		return false
	}
	s.active = i
	return true
}

// Complete reports whether the relay stream finished with a complete
// envelope.
func (s *Store) Complete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.complete
}

// StreamError returns the in-band error message, if the stream ended with
// an error envelope.
func (s *Store) StreamError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamErr
}
