package codec

import (
	"bytes"
	"strings"
	"testing"
)

func TestPlainPassThrough(t *testing.T) {
	c := Plain{}
	in := []byte("hello")
	out, err := c.Decode(c.Encode(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("got %q", out)
	}
}

func TestSnappyRoundTrip(t *testing.T) {
	c := Snappy{}
	in := []byte(strings.Repeat("abcdefgh", 512))
	enc := c.Encode(in)
	if len(enc) >= len(in) {
		t.Fatalf("repetitive payload did not compress: %d -> %d", len(in), len(enc))
	}
	out, err := c.Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("round trip mismatch")
	}
}

func TestSnappyRejectsGarbage(t *testing.T) {
	c := Snappy{}
	if _, err := c.Decode([]byte("definitely not snappy")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestByName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "plain", true},
		{"plain", "plain", true},
		{"snappy", "snappy", true},
		{"zstd", "", false},
	}
	for _, tc := range cases {
		c, err := ByName(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("%q: err = %v", tc.in, err)
		}
		if err == nil && c.Name() != tc.want {
			t.Fatalf("%q: got %s", tc.in, c.Name())
		}
	}
}
