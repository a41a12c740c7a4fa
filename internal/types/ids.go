package types

import (
	"time"

	"github.com/google/uuid"
)

// NewTreeID generates a UUIDv7 tree identifier.
// Time-ordered IDs keep inserts into decision_trees clustered by creation time.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewTreeID() TreeID {
	return TreeID(uuid.Must(uuid.NewV7()).String())
}

// ParseTreeID validates and converts a string to TreeID.
func ParseTreeID(s string) (TreeID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return TreeID(s), nil
}

// TreeIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func TreeIDTime(id TreeID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
