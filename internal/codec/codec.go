// Package codec defines the payload codec boundary. The queue core treats
// entry payloads as opaque byte spans; a codec only transforms the bytes
// inside the frame, never the frame itself.
package codec

import (
	"fmt"

	"github.com/golang/snappy"
)

// Codec encodes payloads on append and decodes them on read.
type Codec interface {
	// Name identifies the codec in config and diagnostics.
	Name() string
	Encode(src []byte) []byte
	Decode(src []byte) ([]byte, error)
}

// Plain passes payloads through untouched.
type Plain struct{}

// Name implements Codec.
func (Plain) Name() string { return "plain" }

// Encode implements Codec.
func (Plain) Encode(src []byte) []byte { return src }

// Decode implements Codec.
func (Plain) Decode(src []byte) ([]byte, error) { return src, nil }

// Snappy compresses payloads with snappy block encoding.
type Snappy struct{}

// Name implements Codec.
func (Snappy) Name() string { return "snappy" }

// Encode implements Codec.
func (Snappy) Encode(src []byte) []byte { return snappy.Encode(nil, src) }

// Decode implements Codec.
func (Snappy) Decode(src []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("codec: snappy decode: %w", err)
	}
	return out, nil
}

// ByName resolves a codec from its config name. Empty means plain.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "plain":
		return Plain{}, nil
	case "snappy":
		return Snappy{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
