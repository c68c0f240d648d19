package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB adapts any JSON-marshalable value to database/sql/driver's
// Valuer/Scanner pair, so it can be passed directly as a query argument or
// scan destination for a Postgres JSONB column instead of a separate
// json.Marshal/Unmarshal step wrapped around a []byte. Job.Shots is the
// one field currently persisted this way (internal/jobstore/postgres.go).
type JSONB[T any] struct {
	Data T
}

func (j JSONB[T]) Value() (driver.Value, error) {
	return json.Marshal(j.Data)
}

func (j *JSONB[T]) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("models: JSONB.Scan: unsupported source type %T", value)
	}
	return json.Unmarshal(bytes, &j.Data)
}
