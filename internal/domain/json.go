package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON is a raw JSON document stored in a jsonb column.
type JSON json.RawMessage

// IsEmpty reports whether the value is absent or JSON null.
func (j JSON) IsEmpty() bool {
	trimmed := bytes.TrimSpace(j)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j.IsEmpty() {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return fmt.Errorf("domain.JSON: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[0:0], data...)
	return nil
}

// Value returns the document as a string; lib/pq sends []byte parameters
// in binary format, which jsonb columns reject.
func (j JSON) Value() (driver.Value, error) {
	if j.IsEmpty() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(JSON(nil), v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("scan json: unsupported type %T", src)
	}
	return nil
}

type RelatedPosts []RelatedPost

func (r RelatedPosts) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]RelatedPost(r))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r *RelatedPosts) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan related posts: unsupported type %T", src)
	}
	return json.Unmarshal(data, r)
}
