package adapter

import (
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonicalizer turns caller supplied JSON into its RFC 8785 canonical form, so that
// equal payloads are stored byte for byte identical
//
//go:generate mockgen -source=jcs.go -destination=../mocks/jcs.go -package=mocks -mock_names=Canonicalizer=MockCanonicalizer
type Canonicalizer interface {
	Canonicalize(data []byte) ([]byte, error)
}

// JCSCanonicalizer implements Canonicalizer using the jcs package
type JCSCanonicalizer struct{}

// NewCanonicalizer creates a new JCS canonicalizer
func NewCanonicalizer() Canonicalizer {
	return &JCSCanonicalizer{}
}

// Canonicalize returns the canonical form of data, or an error if it is not valid JSON
func (j *JCSCanonicalizer) Canonicalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON document")
	}
	out, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}
	return out, nil
}
