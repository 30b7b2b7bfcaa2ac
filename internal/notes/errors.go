package notes

import "fmt"

// Field names reported by ValidationError.
const (
	FieldTitle   = "title"
	FieldContent = "content"
)

// ValidationError reports an empty title or content on submission.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must not be empty", e.Field)
}

// IndexError reports a display index outside [0, Len).
// It indicates a stale index in the caller, not a user mistake.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("note index %d out of range [0, %d)", e.Index, e.Len)
}
