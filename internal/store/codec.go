package store

import (
	"encoding/json"
	"fmt"
)

// decodeCollection parses a stored collection. Empty input is an empty
// collection.
func decodeCollection[T any](data []byte) ([]T, error) {
	items := []T{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// encodeCollection serializes a collection. A nil slice encodes as [].
func encodeCollection[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return data, nil
}
