package attractions

import (
	"fmt"

	generativeAI "github.com/FACorreiaa/go-city-adventures/internal/api/generative_ai"
)

const attractionsSystemPrompt = "You are a helpful travel assistant that provides information about top attractions in cities, including their precise coordinates."

func getAttractionsPrompt(city string, count int) string {
	return fmt.Sprintf(`Identify the top %d must-visit attractions in %s. For each attraction, provide its name, a brief description, and its precise coordinates (longitude and latitude). Use the addMapMarker function to add each attraction to the map.`, count, city)
}

// addMapMarkerTool declares the function the model calls once per attraction.
// Coordinates come straight from the model; no separate geocoding pass.
func addMapMarkerTool() generativeAI.ToolDeclaration {
	return generativeAI.ToolDeclaration{
		Name:        "addMapMarker",
		Description: "Add a marker for an attraction on the map",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "The name of the attraction",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "A brief description of the attraction",
				},
				"longitude": map[string]any{
					"type":        "number",
					"description": "The longitude coordinate of the attraction",
				},
				"latitude": map[string]any{
					"type":        "number",
					"description": "The latitude coordinate of the attraction",
				},
			},
			"required": []string{"name", "description", "longitude", "latitude"},
		},
	}
}
