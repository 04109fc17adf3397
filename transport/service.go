package transport

import (
	"context"

	"github.com/golang/protobuf/ptypes/any"
	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
)

const deliverMethod = "/pregel.Mailbox/Deliver"

// mailboxServer is the server API for the Mailbox service.
type mailboxServer interface {
	Deliver(mailboxDeliverServer) error
}

type mailboxDeliverServer interface {
	Recv() (*any.Any, error)
	SendAndClose(*empty.Empty) error
	grpc.ServerStream
}

type deliverServerStream struct {
	grpc.ServerStream
}

func (x *deliverServerStream) Recv() (*any.Any, error) {
	m := new(any.Any)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *deliverServerStream) SendAndClose(m *empty.Empty) error {
	return x.ServerStream.SendMsg(m)
}

func deliverHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(mailboxServer).Deliver(&deliverServerStream{stream})
}

var mailboxServiceDesc = grpc.ServiceDesc{
	ServiceName: "pregel.Mailbox",
	HandlerType: (*mailboxServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Deliver",
			Handler:       deliverHandler,
			ClientStreams: true,
		},
	},
	Metadata: "pregel/mailbox.proto",
}

type mailboxDeliverClient interface {
	Send(*any.Any) error
	CloseAndRecv() (*empty.Empty, error)
	grpc.ClientStream
}

type deliverClientStream struct {
	grpc.ClientStream
}

func newDeliverClient(ctx context.Context, conn *grpc.ClientConn) (mailboxDeliverClient, error) {
	stream, err := conn.NewStream(ctx, &mailboxServiceDesc.Streams[0], deliverMethod)
	if err != nil {
		return nil, err
	}
	return &deliverClientStream{stream}, nil
}

func (x *deliverClientStream) Send(m *any.Any) error {
	return x.ClientStream.SendMsg(m)
}

func (x *deliverClientStream) CloseAndRecv() (*empty.Empty, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(empty.Empty)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
