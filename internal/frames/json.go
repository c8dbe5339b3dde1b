package frames

import (
	"errors"

	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("invalid JSON")

// JSONDecoder reads one JSON object per record and extracts the string at Path
// (gjson syntax, e.g. "message.content").
type JSONDecoder struct {
	Path string
}

// Decode returns the nested text field. Records where the field is absent,
// empty or not a string contribute nothing.
func (d JSONDecoder) Decode(record string) (string, error) {
	if !gjson.Valid(record) {
		return "", &RecordParseError{Record: record, Err: errInvalidJSON}
	}
	v := gjson.Get(record, d.Path)
	if v.Type != gjson.String {
		return "", nil
	}
	return v.Str, nil
}
