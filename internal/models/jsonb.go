package models

import (
	"encoding/json"
	"fmt"
)

// marshalJSON encodes a value for storage in a JSONB column.
func marshalJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb value: %w", err)
	}
	return data, nil
}

// scanJSON decodes a JSONB column into dest, tolerating NULL and both the
// []byte and string representations drivers produce.
func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
