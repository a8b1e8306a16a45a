package core

// WritebackPayload is generated code destined for a specific editor file.
type WritebackPayload struct {
	File *string `json:"file"`
	Line *int    `json:"line"`
	Code *string `json:"code"`
}

// EmptyWriteback is the all-null payload returned when nothing is pending.
func EmptyWriteback() WritebackPayload { return WritebackPayload{} }

// IsEmpty reports whether the payload is the all-null sentinel.
func (p WritebackPayload) IsEmpty() bool {
	return p.File == nil && p.Line == nil && p.Code == nil
}

// Clone returns a deep copy.
func (p WritebackPayload) Clone() WritebackPayload {
	return WritebackPayload{File: cloneString(p.File), Line: cloneInt(p.Line), Code: cloneString(p.Code)}
}

// UnmarshalJSON decodes leniently, mapping mistyped fields to nil.
func (p *WritebackPayload) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*p = WritebackPayload{
		File: stringField(fields, "file"),
		Line: writebackLineField(fields, "line"),
		Code: stringField(fields, "code"),
	}
	return nil
}
