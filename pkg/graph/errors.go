package graph

import "errors"

var (
	// ErrEndpointNotFound means an edge referenced a source or target node
	// that does not exist. Nothing is written when this is returned.
	ErrEndpointNotFound = errors.New("source or target node does not exist")

	// ErrInvalidWeight means an edge weight fell outside [0, 1].
	ErrInvalidWeight = errors.New("edge weight must be in [0, 1]")

	// ErrClosed means the store was used after Close.
	ErrClosed = errors.New("graph store is closed")
)
