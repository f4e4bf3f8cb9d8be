package store

import (
	"fmt"
	"os"
)

// ReadSeed reads a JSON object from path for use with MergeMissing or
// SetRawMany.
func ReadSeed(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return doc, nil
}
