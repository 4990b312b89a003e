package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONValue marshals v for a json/jsonb column.
func JSONValue(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// ScanJSON decodes a json/jsonb column into dst. NULL leaves dst untouched.
func ScanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(v), dst)
	case []byte:
		return json.Unmarshal(v, dst)
	default:
		return fmt.Errorf("dbtypes: unsupported json scan type %T", src)
	}
}
