package models

import (
	"database/sql/driver"
	"encoding/json"
)

// ScoreMap maps a criterion id to a submitted 0-100 value, stored as JSONB
type ScoreMap map[string]float64

// Scan implements the sql.Scanner interface
func (m *ScoreMap) Scan(value interface{}) error {
	if value == nil {
		*m = make(ScoreMap)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			*m = make(ScoreMap)
			return nil
		}
	}

	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface
func (m ScoreMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(make(map[string]float64))
	}
	return json.Marshal(m)
}

// GormDataType defines the data type for GORM
func (ScoreMap) GormDataType() string {
	return "jsonb"
}
