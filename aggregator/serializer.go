package aggregator

import (
	"encoding/binary"
	"math"

	"github.com/golang/protobuf/ptypes/any"
	"golang.org/x/xerrors"
)

const (
	intTypeURL   = "pregel/int"
	floatTypeURL = "pregel/float64"
)

// EncodeValue encodes an int or float64 aggregator value into an any.Any
// protobuf message.
func EncodeValue(v interface{}) (*any.Any, error) {
	scratchBuf := make([]byte, binary.MaxVarintLen64)
	switch val := v.(type) {
	case int:
		nBytes := binary.PutVarint(scratchBuf, int64(val))
		return &any.Any{TypeUrl: intTypeURL, Value: scratchBuf[:nBytes]}, nil
	case float64:
		nBytes := binary.PutUvarint(scratchBuf, math.Float64bits(val))
		return &any.Any{TypeUrl: floatTypeURL, Value: scratchBuf[:nBytes]}, nil
	default:
		return nil, xerrors.Errorf("encode aggregator value: unsupported type %T", val)
	}
}

// DecodeValue decodes an aggregator value produced by EncodeValue.
func DecodeValue(v *any.Any) (interface{}, error) {
	if v == nil {
		return nil, xerrors.Errorf("decode aggregator value: nil payload")
	}

	switch v.TypeUrl {
	case intTypeURL:
		val, n := binary.Varint(v.Value)
		if n <= 0 {
			return nil, xerrors.Errorf("decode aggregator value: malformed int payload")
		}
		return int(val), nil
	case floatTypeURL:
		val, n := binary.Uvarint(v.Value)
		if n <= 0 {
			return nil, xerrors.Errorf("decode aggregator value: malformed float64 payload")
		}
		return math.Float64frombits(val), nil
	default:
		return nil, xerrors.Errorf("decode aggregator value: unknown type %q", v.TypeUrl)
	}
}
