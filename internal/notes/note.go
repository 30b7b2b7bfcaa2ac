// Package notes holds the in-memory collection of meeting notes for a session.
package notes

import (
	"time"
)

// TimestampLayout renders CreatedAt as "DD/MM/YYYY às HH:MM".
const TimestampLayout = "02/01/2006 às 15:04"

// Note is one saved meeting note. Notes are immutable once created.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Timestamp returns the display form of CreatedAt.
func (n Note) Timestamp() string {
	return n.CreatedAt.Format(TimestampLayout)
}
