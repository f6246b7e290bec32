package formwizard

import (
	"github.com/mark3labs/carepath/internal/submission"
)

// FieldEditedMsg carries the content of a multiline field edited in $EDITOR.
type FieldEditedMsg struct {
	Key     string
	Content string
}

// AckResultMsg reports the outcome of acknowledging a submitted receipt.
type AckResultMsg struct {
	Ack submission.Ack
	Err error
}
