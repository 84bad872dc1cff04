package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a TransformService at target. Without options the
// connection is plaintext.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc}, nil
}

// Transform returns the output rows as decoded JSON objects.
func (c *Client) Transform(ctx context.Context, recipe, body string) ([]any, error) {
	in, err := structpb.NewStruct(map[string]any{"recipe": recipe, "body": body})
	if err != nil {
		return nil, err
	}
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, transformMethod, in, out); err != nil {
		return nil, err
	}
	return out.AsSlice(), nil
}

func (c *Client) Conn() *grpc.ClientConn { return c.cc }

func (c *Client) Close() error { return c.cc.Close() }
