// Package zbor is the record codec of the embedded reserve store: canonical
// CBOR, so identical records always produce identical bytes, compressed with
// zstd.
package zbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Codec is safe for concurrent use.
type Codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
	zw  *zstd.Encoder
	zr  *zstd.Decoder
}

// NewCodec builds the codec. It panics only if the static options are invalid.
func NewCodec() *Codec {
	encOpts := cbor.CanonicalEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	enc, err := encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encode options: %v", err))
	}

	dec, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor decode options: %v", err))
	}

	zw, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("zstd writer: %v", err))
	}
	zr, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("zstd reader: %v", err))
	}

	return &Codec{enc: enc, dec: dec, zw: zw, zr: zr}
}

// Marshal encodes v and compresses the result.
func (c *Codec) Marshal(v any) ([]byte, error) {
	raw, err := c.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor encode %T: %w", v, err)
	}
	return c.zw.EncodeAll(raw, make([]byte, 0, len(raw))), nil
}

// Unmarshal reverses Marshal into v.
func (c *Codec) Unmarshal(data []byte, v any) error {
	raw, err := c.zr.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("zstd decode: %w", err)
	}
	if err := c.dec.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("cbor decode %T: %w", v, err)
	}
	return nil
}
