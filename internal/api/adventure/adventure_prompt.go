package adventure

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

const narrativeSystemPrompt = "You are a creative travel guide that creates engaging mystery adventures."

func getNarrativePrompt(city string, attractions []types.Attraction) string {
	names := make([]string, len(attractions))
	for i, a := range attractions {
		names[i] = a.Name
	}
	return fmt.Sprintf(`Create a mystery adventure story that connects these %d attractions in %s: %s.

The story should have 5 parts:
1. Introduction to the first landmark
2. A clue that leads to the second landmark
3. Description of the second landmark
4. A clue that leads to the third landmark
5. Description of the third landmark and conclusion

Format the response as a JSON object with an array called "cards". Each card should have "type" (either "landmark" or "clue"), "title", and "content" properties.`,
		len(attractions), city, strings.Join(names, ", "))
}

func getImagePrompt(title, city string) string {
	return fmt.Sprintf("A stylized image of %s in %s. Dramatic and atmospheric.", title, city)
}
