package access

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexString is an identifier that may arrive as a JSON string or number.
// Hotel systems send room, guest and booking IDs either way; both decode to
// the same text. null decodes to "".
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the identifier text.
func (f FlexString) String() string {
	return string(f)
}
