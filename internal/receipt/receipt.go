// Package receipt produces receipt numbers and entity ids.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Number returns a receipt number of the form RCP-20260828143015-9F3A1B2C.
// The timestamp second plus the random suffix keeps collisions out of a
// unique index even when two terminals commit within the same second.
func Number(at time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("RCP-%s-%s", at.Format("20060102150405"), suffix)
}

// NewID returns a prefixed opaque id for a stored entity.
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
