package protocol

import (
	"strings"

	"github.com/golang/protobuf/ptypes/any"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/xerrors"
)

const typeURLPrefix = "pregel.protocol/"

// ErrUnknownMessage is returned when encoding or decoding a message that is
// not part of the protocol.
var ErrUnknownMessage = xerrors.New("unknown protocol message")

type decodeFunc func([]byte) (interface{}, error)

func decoderFor[T interface{}]() decodeFunc {
	return func(b []byte) (interface{}, error) {
		var msg T
		if err := msgpack.Unmarshal(b, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	}
}

var decoders = map[string]decodeFunc{
	"Start":             decoderFor[Start](),
	"Cancel":            decoderFor[Cancel](),
	"WorkerStart":       decoderFor[WorkerStart](),
	"LoadGraph":         decoderFor[LoadGraph](),
	"RunSuperstep":      decoderFor[RunSuperstep](),
	"VertexMessages":    decoderFor[VertexMessages](),
	"Store":             decoderFor[Store](),
	"Cleanup":           decoderFor[Cleanup](),
	"WorkerCreated":     decoderFor[WorkerCreated](),
	"GraphLoaded":       decoderFor[GraphLoaded](),
	"SuperstepFinished": decoderFor[SuperstepFinished](),
	"ResultsStored":     decoderFor[ResultsStored](),
	"CleanupFinished":   decoderFor[CleanupFinished](),
	"WorkerError":       decoderFor[WorkerError](),
}

// Name returns the protocol name of msg or an empty string if msg is not a
// protocol message.
func Name(msg interface{}) string {
	switch msg.(type) {
	case Start:
		return "Start"
	case Cancel:
		return "Cancel"
	case WorkerStart:
		return "WorkerStart"
	case LoadGraph:
		return "LoadGraph"
	case RunSuperstep:
		return "RunSuperstep"
	case VertexMessages:
		return "VertexMessages"
	case Store:
		return "Store"
	case Cleanup:
		return "Cleanup"
	case WorkerCreated:
		return "WorkerCreated"
	case GraphLoaded:
		return "GraphLoaded"
	case SuperstepFinished:
		return "SuperstepFinished"
	case ResultsStored:
		return "ResultsStored"
	case CleanupFinished:
		return "CleanupFinished"
	case WorkerError:
		return "WorkerError"
	default:
		return ""
	}
}

// Marshal serializes a protocol message into an any.Any value whose type URL
// identifies the message.
func Marshal(msg interface{}) (*any.Any, error) {
	name := Name(msg)
	if name == "" {
		return nil, xerrors.Errorf("marshal %T: %w", msg, ErrUnknownMessage)
	}

	body, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, xerrors.Errorf("marshal %s: %w", name, err)
	}
	return &any.Any{TypeUrl: typeURLPrefix + name, Value: body}, nil
}

// Unmarshal decodes a message that was serialized via Marshal.
func Unmarshal(payload *any.Any) (interface{}, error) {
	if payload == nil {
		return nil, xerrors.New("unmarshal: nil payload")
	}

	name := strings.TrimPrefix(payload.TypeUrl, typeURLPrefix)
	dec, ok := decoders[name]
	if !ok || name == payload.TypeUrl {
		return nil, xerrors.Errorf("unmarshal %q: %w", payload.TypeUrl, ErrUnknownMessage)
	}

	msg, err := dec(payload.Value)
	if err != nil {
		return nil, xerrors.Errorf("unmarshal %s: %w", name, err)
	}
	return msg, nil
}
