package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Cached lists are stored in a versioned envelope.
//
//	version 1: a bare JSON array of items (written by older releases)
//	version 2: {"version": 2, "items": [...]}
//
// Objects without a version field but with an items array are read as
// version 2; older releases occasionally stored the whole upstream response.
const currentVersion = 2

// ErrUnsupportedEnvelope is returned for payloads that match neither version.
var ErrUnsupportedEnvelope = errors.New("unsupported cache envelope")

type envelope[T any] struct {
	Version int `json:"version"`
	Items   []T `json:"items"`
}

// EncodeItems wraps items in the current envelope version.
func EncodeItems[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(envelope[T]{Version: currentVersion, Items: items})
}

// DecodeItems reads either envelope version.
func DecodeItems[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnsupportedEnvelope)
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode v1 envelope: %w", err)
		}
		return items, nil
	case '{':
		var env struct {
			Version int             `json:"version"`
			Items   json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decode v2 envelope: %w", err)
		}
		if env.Version != 0 && env.Version != currentVersion {
			return nil, fmt.Errorf("%w: version %d", ErrUnsupportedEnvelope, env.Version)
		}
		if len(env.Items) == 0 || env.Items[0] != '[' {
			return nil, fmt.Errorf("%w: items is not a list", ErrUnsupportedEnvelope)
		}
		var items []T
		if err := json.Unmarshal(env.Items, &items); err != nil {
			return nil, fmt.Errorf("decode v2 items: %w", err)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrUnsupportedEnvelope, trimmed[0])
	}
}
