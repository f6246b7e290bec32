package wizard

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Receipt is the acknowledgement of a successful submission: a copy of the
// finalized draft plus a generated reference.
type Receipt struct {
	Flow        string
	Reference   string
	SubmittedAt time.Time
	Fields      Draft
}

// NewReference returns PREFIX-xxxxxxxx where the suffix is the first eight hex
// digits of a random UUID.
func NewReference(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if prefix == "" {
		return strings.ToUpper(id)
	}
	return strings.ToUpper(prefix) + "-" + strings.ToUpper(id)
}

// DefaultPrefix derives a reference prefix from a flow name.
func DefaultPrefix(flow string) string {
	s := slug.Make(flow)
	if s == "" {
		return "REF"
	}
	return s
}
