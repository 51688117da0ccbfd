package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a []string persisted as a JSON text column
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	data, err := columnBytes(value)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// CardSnapshots holds the denormalized card records of a display case
type CardSnapshots []map[string]interface{}

func (s CardSnapshots) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]map[string]interface{}(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *CardSnapshots) Scan(value interface{}) error {
	data, err := columnBytes(value)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*s = CardSnapshots{}
		return nil
	}
	return json.Unmarshal(data, (*[]map[string]interface{})(s))
}

func columnBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", value)
	}
}
