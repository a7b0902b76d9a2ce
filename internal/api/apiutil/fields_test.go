package apiutil

import (
	"errors"
	"testing"
)

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "offset kept", raw: "2017-12-25T12:30:00+05:00"},
		{name: "fractional seconds", raw: "2017-12-25T12:30:00.123456789Z"},
		{name: "blank", raw: "  ", wantErr: true},
		{name: "not rfc3339", raw: "next tuesday", wantErr: true},
		{name: "past 2262", raw: "2620-01-01T00:00:00Z", wantErr: true},
		{name: "before 1677", raw: "1600-01-01T00:00:00Z", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTimestamp(tc.raw, "end")
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("parse %q: %v", tc.raw, err)
				}
				if FormatTimestamp(got) != tc.raw {
					t.Fatalf("round trip: got %q want %q", FormatTimestamp(got), tc.raw)
				}
				return
			}
			var fieldErr FieldError
			if !errors.As(err, &fieldErr) || fieldErr.Field != "end" {
				t.Fatalf("err: got %v want FieldError on end", err)
			}
		})
	}
}
