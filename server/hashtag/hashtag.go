package hashtag

import (
	"strings"
	"unicode"

	"github.com/borderwatch/alert-dashboard/server/backend"
)

// Generate creates formatted hashtag text from alert data.
//
// Order of hashtags:
// 1. Object type (#Person, #Car, ...)
// 2. Camera (#Cam07)
// 3. Status (#New), if recorded
//
// Returns formatted string (e.g., "🏷️ #Person, #Cam07, #New")
func Generate(alert backend.Alert) string {
	var allTags []string

	allTags = append(allTags, extractObjectTag(alert.ObjectType))

	if tag := extractCameraTag(alert.CameraID); tag != "" {
		allTags = append(allTags, tag)
	}

	if tag := toTag(alert.Status); tag != "" {
		allTags = append(allTags, tag)
	}

	return formatHashtagText(deduplicateTags(allTags))
}

// extractObjectTag extracts the hashtag for the detected object type.
func extractObjectTag(objectType string) string {
	if tag := toTag(objectType); tag != "" {
		return tag
	}
	return "#Detection"
}

// extractCameraTag builds the camera hashtag. Camera IDs like "cam_07" or "CAM-07"
// both become #Cam07; bare numeric IDs get a "Cam" prefix.
func extractCameraTag(cameraID string) string {
	tag := toTag(cameraID)
	if tag == "" {
		return ""
	}
	if unicode.IsDigit(rune(tag[1])) {
		return "#Cam" + tag[1:]
	}
	return tag
}

// toTag turns free text into a single CamelCase hashtag. Separators and
// punctuation split words. Returns "" when nothing usable is left.
func toTag(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	tag := camelCase(strings.Join(words, " "))
	if tag == "" {
		return ""
	}
	return "#" + tag
}

// deduplicateTags removes duplicate tags (case-insensitive) while preserving order.
func deduplicateTags(tags []string) []string {
	seen := make(map[string]bool)
	var uniqueTags []string

	for _, tag := range tags {
		tagLower := strings.ToLower(tag)
		if !seen[tagLower] {
			uniqueTags = append(uniqueTags, tag)
			seen[tagLower] = true
		}
	}

	return uniqueTags
}

// formatHashtagText formats hashtags as comma-separated text with emoji prefix.
func formatHashtagText(tags []string) string {
	if len(tags) == 0 {
		return ""
	}

	return "🏷️ " + strings.Join(tags, ", ")
}

// camelCase converts text to CamelCase by capitalizing first letter of each word
// and removing spaces.
func camelCase(text string) string {
	words := strings.Fields(text)
	var result strings.Builder

	for _, word := range words {
		if len(word) > 0 {
			result.WriteString(strings.ToUpper(word[:1]))
			if len(word) > 1 {
				result.WriteString(word[1:])
			}
		}
	}

	return result.String()
}
