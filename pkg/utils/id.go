package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID returns a random UUID string.
func GenerateID() string {
	return uuid.NewString()
}

// GenerateRunID generates a run ID of the form <kind>-<yyyymmdd-hhmmss>-<8 hex chars>.
// An empty kind defaults to "run".
func GenerateRunID(kind string) string {
	if kind == "" {
		kind = "run"
	}
	timestamp := time.Now().UTC().Format("20060102-150405")
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", kind, timestamp, short)
}

// ValidateRunID rejects IDs that would break URL routing (/v1/calibrations/{id}:stop).
func ValidateRunID(id string) error {
	if id == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	if strings.ContainsAny(id, "/:? ") {
		return fmt.Errorf("run id %q cannot contain '/', ':', '?' or spaces", id)
	}
	return nil
}
