package types

// Coordinates is a [longitude, latitude] pair, serialized as a two-element
// JSON array to match the map widget's marker format.
type Coordinates [2]float64

func (c Coordinates) Lon() float64 { return c[0] }
func (c Coordinates) Lat() float64 { return c[1] }

// City is the active destination. Coordinates start as (0,0) for a free-text
// search and are refined by the client-side geocoder, not by this service.
type City struct {
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
}

// Attraction is one AI-identified point of interest in a city. Attractions are
// produced as an atomic batch per city query; a partial batch is never returned.
type Attraction struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
}
