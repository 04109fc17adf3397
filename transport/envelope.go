// Package transport delivers actor messages between servers over gRPC.
//
// Each server exposes a Mailbox service with a single client-streaming
// Deliver RPC. A client keeps one stream per remote server, so messages from
// one server to another travel in the order they were sent. Every stream
// element is an *any.Any wrapping a msgpack-encoded envelope that carries
// the sender and receiver PIDs together with the protocol message.
package transport

import (
	"github.com/golang/protobuf/ptypes/any"
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/protocol"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/xerrors"
)

const envelopeTypeURL = "pregel.transport/Envelope"

type envelope struct {
	Sender   actor.PID `msgpack:"sender"`
	Receiver actor.PID `msgpack:"receiver"`
	Payload  *any.Any  `msgpack:"payload"`
}

func encodeEnvelope(sender, receiver actor.PID, msg interface{}) (*any.Any, error) {
	payload, err := protocol.Marshal(msg)
	if err != nil {
		return nil, err
	}

	body, err := msgpack.Marshal(envelope{Sender: sender, Receiver: receiver, Payload: payload})
	if err != nil {
		return nil, xerrors.Errorf("encode envelope: %w", err)
	}
	return &any.Any{TypeUrl: envelopeTypeURL, Value: body}, nil
}

func decodeEnvelope(in *any.Any) (sender, receiver actor.PID, msg interface{}, err error) {
	if in.GetTypeUrl() != envelopeTypeURL {
		return sender, receiver, nil, xerrors.Errorf("decode envelope: unexpected type %q", in.GetTypeUrl())
	}

	var env envelope
	if err = msgpack.Unmarshal(in.GetValue(), &env); err != nil {
		return sender, receiver, nil, xerrors.Errorf("decode envelope: %w", err)
	}
	if msg, err = protocol.Unmarshal(env.Payload); err != nil {
		return sender, receiver, nil, err
	}
	return env.Sender, env.Receiver, msg, nil
}
