// Package domain defines the persistence models for bios, polls, forms, and
// their submissions. This file implements the JSON-backed column types used
// for schema-light fields (poll options, selected option ids, chart colors,
// form field definitions, and raw answer payloads).
//
// SQLite has no native array/json column, so these types serialize to a TEXT
// column via database/sql's Valuer/Scanner contract. Empty values marshal to
// "[]"/"{}" rather than NULL so that scans never produce nil collections.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PollOption is a single selectable answer of a poll. IDs are caller-visible
// strings and must stay stable across poll updates unless the option is
// explicitly removed.
type PollOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PollOptions is the ordered option list of a poll, stored as a JSON array.
type PollOptions []PollOption

// Value implements driver.Valuer.
func (o PollOptions) Value() (driver.Value, error) {
	if o == nil {
		o = PollOptions{}
	}
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (o *PollOptions) Scan(src any) error {
	return scanJSON(src, o)
}

// StringList is a JSON array of strings (chart colors, selected option ids).
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

// FormField describes one input of a form. The core treats the schema as
// opaque except for automation variable mapping, which uses ID, Label, and
// Type (e.g. "email" fields feed lead detection).
type FormField struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// FormFields is the field schema of a form, stored as a JSON array.
type FormFields []FormField

// Value implements driver.Valuer.
func (f FormFields) Value() (driver.Value, error) {
	if f == nil {
		f = FormFields{}
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (f *FormFields) Scan(src any) error {
	return scanJSON(src, f)
}

// JSONMap is an arbitrary key/value payload (form answer values), stored as a
// JSON object.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		m = JSONMap{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	return scanJSON(src, m)
}

// scanJSON decodes a TEXT/BLOB column into dst. NULL decodes into the zero
// value of dst rather than failing.
func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}
