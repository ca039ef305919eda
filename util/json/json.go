// Package json wraps jsoniter with the two configurations mappings need:
// a regular one for API payloads and a canonical one for stored sources.
package json

import (
	"encoding/json"

	"github.com/json-iterator/go"
)

// Number is what numbers decode to; callers don't need encoding/json.
type Number = json.Number

var (
	apiAdapter = jsoniter.Config{
		EscapeHTML:             true,
		ValidateJsonRawMessage: true,
		UseNumber:              true,
	}.Froze()

	// equal trees always produce equal bytes
	canonicalAdapter = jsoniter.Config{
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		UseNumber:              true,
	}.Froze()
)

func Marshal(v interface{}) ([]byte, error) {
	return apiAdapter.Marshal(v)
}

// MarshalCanonical marshals v with map keys in sorted order and without
// html escaping.
func MarshalCanonical(v interface{}) ([]byte, error) {
	return canonicalAdapter.Marshal(v)
}

// Unmarshal decodes data into v, numbers are decoded as Number.
func Unmarshal(data []byte, v interface{}) error {
	return apiAdapter.Unmarshal(data, v)
}

// UnmarshalObject decodes a JSON object. null decodes to an empty map.
func UnmarshalObject(data []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := apiAdapter.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = make(map[string]interface{})
	}
	return m, nil
}
