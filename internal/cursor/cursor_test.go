package cursor

import (
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	k := Key{
		UpdatedAt: time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC),
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC),
		ID:        "3f1c9a52-9d7e-4b1a-8c2f-000000000001",
	}
	got, err := Decode(Encode(k))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.UpdatedAt.Equal(k.UpdatedAt) || !got.CreatedAt.Equal(k.CreatedAt) || got.ID != k.ID {
		t.Errorf("round trip = %+v, want %+v", got, k)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		"",
		"not base64!!",
		"YWJj",     // "abc": no separators
		"MXwy",     // "1|2": missing id
		"eHx5fHo",  // "x|y|z": non-numeric timestamps
	}
	for _, tc := range cases {
		if _, err := Decode(tc); err == nil {
			t.Errorf("Decode(%q) = nil error, want failure", tc)
		}
	}
}

func TestTokenIsOpaque(t *testing.T) {
	k := Key{UpdatedAt: time.Now().UTC(), CreatedAt: time.Now().UTC(), ID: "a"}
	tok := Encode(k)
	for _, c := range tok {
		if c == '|' {
			t.Fatalf("token %q leaks internal separator", tok)
		}
	}
}
