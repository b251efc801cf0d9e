package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON stores T as a JSON document. It scans both byte and text columns so
// the same model works on Postgres jsonb and SQLite text.
type JSON[T any] struct {
	Data T
}

func (p *JSON[T]) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		var zero T
		p.Data = zero
		return nil
	case []byte:
		return json.Unmarshal(v, &p.Data)
	case string:
		return json.Unmarshal([]byte(v), &p.Data)
	default:
		return fmt.Errorf("JSON.Scan: unsupported source type %T", src)
	}
}

func (p JSON[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(p.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
