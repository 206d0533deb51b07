package types

import "fmt"

// CardKind distinguishes the two narrative step types.
type CardKind string

const (
	CardKindLandmark CardKind = "landmark"
	CardKindClue     CardKind = "clue"
)

// KindForSlot returns the kind a card must have at the given narrative position.
// The five-part structure is fixed: landmark, clue, landmark, clue, landmark.
func KindForSlot(index int) CardKind {
	if index%2 == 0 {
		return CardKindLandmark
	}
	return CardKindClue
}

// ImageStatus tracks the image-enrichment state of a card.
type ImageStatus string

const (
	ImagePending ImageStatus = "pending"
	ImageReady   ImageStatus = "ready"
	ImageFailed  ImageStatus = "failed"
)

// AdventureCard is one step of a generated mystery adventure. Card identity is
// stable from the moment it is emitted; the image fields are the only parts
// mutated afterwards, keyed by ID.
type AdventureCard struct {
	ID          string      `json:"id"`
	Kind        CardKind    `json:"type"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	ImageURL    string      `json:"imageUrl,omitempty"`
	ImageStatus ImageStatus `json:"imageStatus"`
}

// CardID builds the wire identifier for the card at a narrative slot.
func CardID(index int) string {
	return fmt.Sprintf("card-%d", index)
}

// AdventureCardCount is the fixed number of narrative slots per adventure.
const AdventureCardCount = 5
