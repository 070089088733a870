package rpc

import (
	"context"

	"github.com/and161185/ecoquest/internal/convert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the service with JSON-shaped Go values.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Call encodes in, invokes method and decodes the reply into out (which may be nil).
func (c *Client) Call(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	req := &structpb.Struct{}
	if in != nil {
		var err error
		if req, err = convert.ToStruct(in); err != nil {
			return err
		}
	}
	reply := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, reply, opts...); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return convert.FromStruct(reply, out)
}

// WithBearer attaches an access token to outgoing calls.
func WithBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// ErrorViewFromStatus recovers the error view attached by the server, if any.
func ErrorViewFromStatus(err error) (convert.ErrorView, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return convert.ErrorView{}, false
	}
	for _, d := range st.Details() {
		if detail, ok := d.(*structpb.Struct); ok {
			var v convert.ErrorView
			if convert.FromStruct(detail, &v) == nil && v.ErrorKind != "" {
				return v, true
			}
		}
	}
	return convert.ErrorView{}, false
}
