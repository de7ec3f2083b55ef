package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// jsonColumn normalises what drivers hand back for json/jsonb columns.
func jsonColumn(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", value)
	}
}

// Headers holds extra HTTP headers sent with every scan request.
type Headers map[string]string

func (h Headers) Value() (driver.Value, error) {
	if len(h) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan never fails on malformed stored JSON: the field is dropped and the
// problem logged so a task with bad headers can still be read and scanned.
func (h *Headers) Scan(value interface{}) error {
	b, err := jsonColumn(value)
	if err != nil {
		return err
	}
	*h = nil
	if len(b) == 0 {
		return nil
	}
	var parsed Headers
	if err := json.Unmarshal(b, &parsed); err != nil {
		zap.L().Warn("stored headers contain invalid JSON, ignoring", zap.ByteString("headers", b), zap.Error(err))
		return nil
	}
	*h = parsed
	return nil
}

// StringList is a JSON encoded list of strings (actions, ignored rule codes).
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringList) Scan(value interface{}) error {
	b, err := jsonColumn(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*s = StringList{}
		return nil
	}
	return json.Unmarshal(b, s)
}

// IssueList is the raw issue list stored with a result.
type IssueList []Issue

func (l IssueList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IssueList) Scan(value interface{}) error {
	b, err := jsonColumn(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*l = IssueList{}
		return nil
	}
	return json.Unmarshal(b, l)
}

// ParseHeaderInput converts API header input into Headers. The input may be a
// JSON object of strings, a string containing such an object, an empty string
// or null. Everything else is an error.
func ParseHeaderInput(raw json.RawMessage) (Headers, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("headers: %w", err)
		}
		if len(bytes.TrimSpace([]byte(s))) == 0 {
			return nil, nil
		}
		raw = []byte(s)
	}
	var headers Headers
	if err := json.Unmarshal(raw, &headers); err != nil {
		return nil, fmt.Errorf("headers must be a JSON object of strings: %w", err)
	}
	return headers, nil
}

// ParseStringListInput accepts a JSON array of strings or a string holding one.
func ParseStringListInput(raw json.RawMessage) (StringList, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace([]byte(s))) == 0 {
			return StringList{}, nil
		}
		raw = []byte(s)
	}
	var list StringList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("expected a JSON array of strings: %w", err)
	}
	return list, nil
}
