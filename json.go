package stripedmap

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

var (
	jsonMarshal   func(v any) ([]byte, error)
	jsonUnmarshal func(data []byte, v any) error
)

// SetDefaultJSONMarshal sets the default JSON serialization and deserialization functions.
// If not set, the standard library is used by default.
func SetDefaultJSONMarshal(marshal func(v any) ([]byte, error), unmarshal func(data []byte, v any) error) {
	jsonMarshal, jsonUnmarshal = marshal, unmarshal
}

// MarshalJSON encodes a snapshot of the table as a JSON object.
func (t *Table[K, V]) MarshalJSON() ([]byte, error) {
	m, err := t.ToMap()
	if err != nil {
		return nil, err
	}
	if jsonMarshal != nil {
		return jsonMarshal(m)
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a JSON object and sets each of its members.
// Existing entries with other keys are kept.
func (t *Table[K, V]) UnmarshalJSON(data []byte) error {
	var a map[K]V
	if jsonUnmarshal != nil {
		if err := jsonUnmarshal(data, &a); err != nil {
			return err
		}
	} else {
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
	}
	return t.Update(maps.All(a))
}

// String implement the formatting output interface fmt.Stringer
func (t *Table[K, V]) String() string {
	m, err := t.ToMap()
	if err != nil {
		return fmt.Sprintf("Table[<%v>]", err)
	}
	return strings.Replace(fmt.Sprint(m), "map[", "Table[", 1)
}
