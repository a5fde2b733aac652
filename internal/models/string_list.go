package models

import "encoding/json"

// StringList is a []string that tolerates the payload shapes the legacy data
// carries for code-list fields: a JSON array, a single bare string, or null.
// Anything else (numbers, objects) is a decode error.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}

	var single *string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single == nil {
		*l = nil
		return nil
	}
	*l = StringList{*single}
	return nil
}
