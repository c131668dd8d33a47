package assets

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestParseDataURI(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	ct, data, err := parseDataURI(uri)
	if err != nil {
		t.Fatal(err)
	}
	if ct != "image/png" {
		t.Errorf("content type = %q; want image/png", ct)
	}
	if string(data) != string(payload) {
		t.Errorf("data = %v; want %v", data, payload)
	}
}

func TestParseDataURIRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"image/png;base64,AAAA",          // missing data: prefix
		"data:image/png;base64",          // no payload separator
		"data:image/png,AAAA",            // not base64-encoded
		"data:image/png;base64,not-b64!", // broken payload
	}
	for _, uri := range cases {
		if _, _, err := parseDataURI(uri); !errors.Is(err, ErrInvalidDataURI) {
			t.Errorf("parseDataURI(%q) err = %v; want ErrInvalidDataURI", uri, err)
		}
	}
}
