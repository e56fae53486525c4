package source

import "errors"

var (
	// ErrConnection is returned when the database cannot be opened or pinged.
	ErrConnection = errors.New("connection failure")
	// ErrQuery is returned when a catalog or aggregation query is rejected.
	ErrQuery = errors.New("query failure")
)
