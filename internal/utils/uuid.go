package utils

import "github.com/google/uuid"

// IsUUID reports whether s parses as a UUID. Route params are validated before
// hitting the database so malformed ids read as 400s, not scan errors.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)

	return err == nil
}
