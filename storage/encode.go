package storage

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ArtifactEncoding is the encoding of a stored artifact.
type ArtifactEncoding int

const (
	// ArtifactEncodingCBOR is the default, deterministic CBOR.
	ArtifactEncodingCBOR ArtifactEncoding = iota
	// ArtifactEncodingJSON is used for artifacts exported as documents.
	ArtifactEncodingJSON
)

// encMode is core deterministic CBOR, with times kept to the nanosecond.
var encMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("invalid cbor options: %v", err))
	}
	return em
}()

// EncodeArtifact encodes a in the given encoding, CBOR by default.
func EncodeArtifact(a any, encoding ...ArtifactEncoding) ([]byte, error) {
	enc := ArtifactEncodingCBOR
	if len(encoding) > 0 {
		enc = encoding[0]
	}
	switch enc {
	case ArtifactEncodingCBOR:
		data, err := encMode.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode artifact: %w", err)
		}
		return data, nil
	case ArtifactEncodingJSON:
		return json.Marshal(a)
	default:
		return nil, fmt.Errorf("unknown artifact encoding: %d", enc)
	}
}

// DecodeArtifact decodes data into out, CBOR by default.
func DecodeArtifact(data []byte, out any, encoding ...ArtifactEncoding) error {
	enc := ArtifactEncodingCBOR
	if len(encoding) > 0 {
		enc = encoding[0]
	}
	switch enc {
	case ArtifactEncodingCBOR:
		if err := cbor.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode artifact: %w", err)
		}
		return nil
	case ArtifactEncodingJSON:
		return json.Unmarshal(data, out)
	default:
		return fmt.Errorf("unknown artifact encoding: %d", enc)
	}
}
