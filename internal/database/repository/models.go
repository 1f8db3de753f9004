package repository

import "time"

// Document represents a documents row.
type Document struct {
	ID         string
	Name       string
	SourcePath string
	Sentences  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
