package access

import (
	"encoding/json"
	"testing"
)

func TestFlexString_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`"12"`, "12", false},
		{`12`, "12", false},
		{`9.5`, "9.5", false},
		{`null`, "", false},
		{`"ab cd"`, "ab cd", false},
		{`true`, "", true},
		{`{"id":1}`, "", true},
	}
	for _, tt := range tests {
		var got struct {
			ID FlexString `json:"id"`
		}
		err := json.Unmarshal([]byte(`{"id":`+tt.in+`}`), &got)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got.ID.String() != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, got.ID, tt.want)
		}
	}
}
