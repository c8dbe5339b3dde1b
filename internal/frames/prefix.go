package frames

import "strings"

// PrefixDecoder accepts lines starting with Prefix and yields the remainder
// verbatim.
type PrefixDecoder struct {
	Prefix string
}

func (d PrefixDecoder) Decode(record string) (string, error) {
	content, ok := strings.CutPrefix(record, d.Prefix)
	if !ok {
		return "", &RecordParseError{Record: record, Err: ErrMissingPrefix}
	}
	return content, nil
}
