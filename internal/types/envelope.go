package types

// Envelope type tags as they appear on the wire.
const (
	EnvelopeCard       = "card"
	EnvelopeImage      = "image"
	EnvelopeImageError = "image-error"
	EnvelopeComplete   = "complete"
	EnvelopeError      = "error"
)

// RelayEnvelope is one unit of the adventure relay protocol: a tagged variant
// encoded as a single JSON object per line. Exactly one "complete" or "error"
// envelope terminates a stream; card and image envelopes may interleave but are
// always delivered in emission order.
type RelayEnvelope struct {
	Type     string         `json:"type"`
	Card     *AdventureCard `json:"card,omitempty"`
	CardID   string         `json:"cardId,omitempty"`
	ImageURL string         `json:"imageUrl,omitempty"`
	Message  string         `json:"message,omitempty"`
}

func CardEnvelope(card AdventureCard) RelayEnvelope {
	return RelayEnvelope{Type: EnvelopeCard, Card: &card}
}

func ImageEnvelope(cardID, imageURL string) RelayEnvelope {
	return RelayEnvelope{Type: EnvelopeImage, CardID: cardID, ImageURL: imageURL}
}

func ImageErrorEnvelope(cardID string) RelayEnvelope {
	return RelayEnvelope{Type: EnvelopeImageError, CardID: cardID}
}

func CompleteEnvelope() RelayEnvelope {
	return RelayEnvelope{Type: EnvelopeComplete}
}

func ErrorEnvelope(message string) RelayEnvelope {
	return RelayEnvelope{Type: EnvelopeError, Message: message}
}

// Terminal reports whether the envelope ends its stream.
func (e RelayEnvelope) Terminal() bool {
	return e.Type == EnvelopeComplete || e.Type == EnvelopeError
}
