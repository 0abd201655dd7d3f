package native

import "errors"

// Shape construction errors.
var (
	ErrEmptyMesh    = errors.New("native: concave shape has no triangles")
	ErrUnknownShape = errors.New("native: unknown shape kind")
)
