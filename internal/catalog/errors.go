package catalog

import "errors"

var (
	// ErrIO marks file read or write failures.
	ErrIO = errors.New("catalog i/o error")
	// ErrParse marks a catalog document that could not be decoded.
	ErrParse = errors.New("catalog parse error")
	// ErrSerialize marks a catalog that could not be encoded.
	ErrSerialize = errors.New("catalog serialize error")
	// ErrNotFound is returned by lookups when nothing matches.
	ErrNotFound = errors.New("catalog entry not found")
	// ErrAmbiguous is returned by Lookup when a partial key matches several images.
	ErrAmbiguous = errors.New("catalog entry ambiguous")
)
