package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeValue unmarshals a single JSON value keeping numbers as json.Number,
// so integer ids are not turned into float64.
func decodeValue(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeDocument(b []byte) (Document, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return Document{}, nil
	}
	v, err := decodeValue(b)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return Document{}, nil
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document root must be a JSON object, got %T", v)
	}
	return doc, nil
}

// deepCopy returns a deep copy of a value by round-tripping through JSON.
func deepCopy(src any) any {
	if src == nil {
		return nil
	}
	b, err := json.Marshal(src)
	if err != nil {
		return nil
	}
	dst, _ := decodeValue(b)
	return dst
}

func copyRecord(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst, _ := deepCopy(src).(map[string]any)
	return dst
}
