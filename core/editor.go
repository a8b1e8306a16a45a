package core

import (
	"bytes"
	"encoding/json"
	"math"
)

// EditorContext is the file/line/selection snapshot prompts are built from.
// A nil field is "unknown" and is rendered as JSON null.
type EditorContext struct {
	File            *string `json:"file"`
	Line            *int    `json:"line"`
	Selection       *string `json:"selection"`
	SurroundingCode *string `json:"surroundingCode"`
}

// IsEmpty reports whether no field is set.
func (c EditorContext) IsEmpty() bool {
	return c.File == nil && c.Line == nil && c.Selection == nil && c.SurroundingCode == nil
}

// Clone returns a deep copy.
func (c EditorContext) Clone() EditorContext {
	return EditorContext{
		File:            cloneString(c.File),
		Line:            cloneInt(c.Line),
		Selection:       cloneString(c.Selection),
		SurroundingCode: cloneString(c.SurroundingCode),
	}
}

// UnmarshalJSON decodes leniently: a field with the wrong JSON type becomes
// nil instead of failing the whole document.
func (c *EditorContext) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*c = EditorContext{
		File:            stringField(fields, "file"),
		Line:            lineField(fields, "line"),
		Selection:       stringField(fields, "selection"),
		SurroundingCode: stringField(fields, "surroundingCode"),
	}
	return nil
}

// String returns a pointer to s. Handy for building contexts and payloads.
func String(s string) *string { return &s }

// Int returns a pointer to i.
func Int(i int) *int { return &i }

// Deref returns *s or "" when nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

// decodeObject returns the raw members of a JSON object. Non-object documents
// (null, arrays, scalars) decode to an empty set.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return map[string]json.RawMessage{}, nil
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func stringField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// lineField accepts non-negative whole numbers only.
func lineField(fields map[string]json.RawMessage, key string) *int {
	return intField(fields, key, 0)
}

// writebackLineField accepts any whole number, including negative ones, since
// the line of a writeback is echoed to the editor unchanged.
func writebackLineField(fields map[string]json.RawMessage, key string) *int {
	return intField(fields, key, math.MinInt32)
}

func intField(fields map[string]json.RawMessage, key string, lowest float64) *int {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < lowest || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
