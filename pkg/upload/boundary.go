package upload

import (
	"bytes"
	"encoding/hex"

	"github.com/google/uuid"
)

const (
	boundaryPrefix      = "audioship-"
	maxBoundaryAttempts = 8
)

// BoundaryFunc produces a candidate multipart boundary.
type BoundaryFunc func() (string, error)

// NewBoundary returns 128 random bits rendered as hex behind a fixed prefix.
func NewBoundary() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return boundaryPrefix + hex.EncodeToString(id[:]), nil
}

// chooseBoundary draws boundaries until one whose delimiter does not occur in
// data is found.
func chooseBoundary(gen BoundaryFunc, data []byte) (string, error) {
	for i := 0; i < maxBoundaryAttempts; i++ {
		b, err := gen()
		if err != nil {
			return "", &Error{Kind: KindValidation, Message: "generate boundary", Err: err}
		}
		if b == "" {
			continue
		}
		if !bytes.Contains(data, []byte("--"+b)) {
			return b, nil
		}
	}
	return "", validationError("no boundary free of payload content after %d attempts", maxBoundaryAttempts)
}
