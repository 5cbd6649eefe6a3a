// Package settings persists small client-side preferences, like the UI
// theme and whether the first-run tour has been shown, behind a pluggable
// store. Drivers exist for in-memory use and Redis.
package settings

import "context"

// Well-known setting keys.
const (
	KeyTheme       = "theme"
	KeyVoiceOutput = "voiceOutput"
	KeyTourSeen    = "tourSeen"
)

// Store is a small per-student key/value store. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get returns the stored value and whether one exists.
	Get(ctx context.Context, studentID, key string) (string, bool, error)

	// Set stores or overwrites a value.
	Set(ctx context.Context, studentID, key, value string) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, studentID, key string) error

	// Close releases backend resources.
	Close() error
}
