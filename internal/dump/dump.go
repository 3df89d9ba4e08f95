// Package dump encodes and decodes the opaque payloads produced by
// RecordStore.Serialize and consumed by RecordStore.Restore.
//
// Wire layout:
//
//	[version:1][zstd(cbor(Payload))][blake3-256 prefix:8]
//
// The CBOR body uses Core Deterministic Encoding, so the same entry always
// serializes to the same bytes. The trailing checksum covers the version
// byte and the compressed body.
package dump

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Version is the payload format version written by Encode.
const Version byte = 1

const checksumSize = 8

// Kind identifies what a payload holds.
type Kind string

// Payload kinds.
const (
	KindHash Kind = "hash"
	KindBlob Kind = "blob"
)

// Payload is the decoded form of a serialized keyspace entry.
// Fields is set for hashes, Data for blobs.
type Payload struct {
	Kind   Kind          `cbor:"1,keyasint"`
	Fields []types.Field `cbor:"2,keyasint,omitempty"`
	Data   []byte        `cbor:"3,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("dump: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("dump: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("dump: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("dump: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode serializes p.
func Encode(p Payload) ([]byte, error) {
	switch p.Kind {
	case KindHash, KindBlob:
	default:
		return nil, fmt.Errorf("encode payload: unknown kind %q", p.Kind)
	}
	body, err := encMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	out := make([]byte, 0, len(body)/2+1+checksumSize)
	out = append(out, Version)
	out = zstdEncoder.EncodeAll(body, out)
	sum := blake3.Sum256(out)
	return append(out, sum[:checksumSize]...), nil
}

// Decode parses a payload produced by Encode. Any structural problem,
// checksum mismatch or unknown version wraps types.ErrCorruptPayload.
func Decode(data []byte) (Payload, error) {
	var p Payload
	if len(data) < 1+checksumSize {
		return p, fmt.Errorf("%w: %d bytes is too short", types.ErrCorruptPayload, len(data))
	}
	content, tail := data[:len(data)-checksumSize], data[len(data)-checksumSize:]
	sum := blake3.Sum256(content)
	if !bytes.Equal(sum[:checksumSize], tail) {
		return p, fmt.Errorf("%w: checksum mismatch", types.ErrCorruptPayload)
	}
	if content[0] != Version {
		return p, fmt.Errorf("%w: unsupported version %d", types.ErrCorruptPayload, content[0])
	}
	body, err := zstdDecoder.DecodeAll(content[1:], nil)
	if err != nil {
		return p, fmt.Errorf("%w: %v", types.ErrCorruptPayload, err)
	}
	if err := decMode.Unmarshal(body, &p); err != nil {
		return p, fmt.Errorf("%w: %v", types.ErrCorruptPayload, err)
	}
	switch p.Kind {
	case KindHash, KindBlob:
	default:
		return p, fmt.Errorf("%w: unknown kind %q", types.ErrCorruptPayload, p.Kind)
	}
	return p, nil
}
