package utils

import "pulsetrack/api/models"

// IsValidEvent reports whether an event carries every field required for
// persistence. Empty string, null, and a missing key all decode to an empty
// string field, so the zero check covers all three.
func IsValidEvent(event models.Event) bool {
	return event.EventType != "" &&
		event.PageURL != "" &&
		event.AnonymousID != "" &&
		event.Timestamp != ""
}
