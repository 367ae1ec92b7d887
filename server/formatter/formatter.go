package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/borderwatch/alert-dashboard/server/backend"
)

// Object class colors
const (
	ColorPerson  = "#FF0000" // Red 🔴
	ColorVehicle = "#FF9900" // Orange 🟠
	ColorAnimal  = "#FFFF00" // Yellow 🟡
	ColorUnknown = "#808080" // Gray ⚪
)

// Object class emojis
const (
	EmojiPerson  = "🔴"
	EmojiVehicle = "🟠"
	EmojiAnimal  = "🟡"
	EmojiUnknown = "⚪"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// FormatAlert converts an enriched backend.Alert into a Mattermost SlackAttachment
// with the detection summary, camera position and the embedded alert image.
func FormatAlert(alert backend.Alert) *model.SlackAttachment {
	attachment := &model.SlackAttachment{}

	objectType := strings.TrimSpace(alert.ObjectType)
	if objectType == "" {
		objectType = "Unknown object"
	}

	camera := alert.CameraID
	if camera == "" {
		camera = "unknown camera"
	}

	attachment.Text = fmt.Sprintf("#### %s %s detected on %s", getObjectEmoji(objectType), capitalize(objectType), camera)
	attachment.Color = getObjectColor(objectType)

	var fields []*model.SlackAttachmentField

	// Event Time + Location side by side
	fields = append(fields, &model.SlackAttachmentField{
		Title: "Event Time",
		Value: formatTime(alert.EventTime, alert.Timestamp),
		Short: true,
	})

	if alert.Location != nil {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Location",
			Value: formatLocation(alert.Location),
			Short: true,
		})
	}

	fields = append(fields,
		&model.SlackAttachmentField{
			Title: "Camera",
			Value: camera,
			Short: true,
		},
		&model.SlackAttachmentField{
			Title: "Alert ID",
			Value: alert.AlertID,
			Short: true,
		},
	)

	if alert.Status != "" {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Status",
			Value: alert.Status,
			Short: true,
		})
	}

	if alert.ImageURL != "" {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Image",
			Value: formatImageLink(alert.ImageURL, alert.ImageURLExpiresAt),
			Short: false,
		})
		attachment.ImageURL = alert.ImageURL
	}

	attachment.Fields = fields
	attachment.Footer = fmt.Sprintf("%s | %s", alert.BackendName, objectType)

	return attachment
}

// objectClass groups detector labels into the classes used for coloring.
func objectClass(objectType string) string {
	switch strings.ToLower(strings.TrimSpace(objectType)) {
	case "person", "people", "pedestrian", "human":
		return "person"
	case "car", "truck", "bus", "motorcycle", "motorbike", "bicycle", "vehicle":
		return "vehicle"
	case "dog", "cat", "cow", "horse", "animal", "bird":
		return "animal"
	default:
		return ""
	}
}

// getObjectColor returns the color code for a detected object type
func getObjectColor(objectType string) string {
	switch objectClass(objectType) {
	case "person":
		return ColorPerson
	case "vehicle":
		return ColorVehicle
	case "animal":
		return ColorAnimal
	default:
		return ColorUnknown
	}
}

// getObjectEmoji returns the emoji for a detected object type
func getObjectEmoji(objectType string) string {
	switch objectClass(objectType) {
	case "person":
		return EmojiPerson
	case "vehicle":
		return EmojiVehicle
	case "animal":
		return EmojiAnimal
	default:
		return EmojiUnknown
	}
}

// formatTime formats the parsed event time, falling back to the raw timestamp
func formatTime(t time.Time, raw string) string {
	if t.IsZero() {
		if raw == "" {
			return "unknown"
		}
		return raw
	}
	return t.Format(timeLayout)
}

// formatLocation formats coordinates with a map link
func formatLocation(loc *backend.Location) string {
	return fmt.Sprintf("[%.6f, %.6f](https://www.openstreetmap.org/?mlat=%.6f&mlon=%.6f)",
		loc.Latitude, loc.Longitude, loc.Latitude, loc.Longitude)
}

// formatImageLink formats the presigned image URL with its expiry
func formatImageLink(url string, expiresAt time.Time) string {
	if expiresAt.IsZero() {
		return fmt.Sprintf("[Open image](%s)", url)
	}
	return fmt.Sprintf("[Open image](%s) (link expires %s)", url, expiresAt.UTC().Format(timeLayout))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
