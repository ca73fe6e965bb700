package domain

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func NewUUID() string {
	return uuid.NewString()
}

// NewULID returns a lexicographically time-ordered id, used for append-only rows.
func NewULID() string {
	return ulid.Make().String()
}
