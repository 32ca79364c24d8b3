// Package grpcclient calls the Monitor service of one agent.
package grpcclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/torosent/crankmeter/internal/monitorrpc"
)

// DefaultTimeout bounds each call when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("client closed")

// Config describes how to reach one agent.
type Config struct {
	Target string
	// Metadata is sent with every call, e.g. an authorization header.
	Metadata map[string]string
	Timeout  time.Duration
	UseTLS   bool
	// Insecure skips certificate verification when UseTLS is set.
	Insecure bool
	// DialOptions are appended after the transport credentials.
	DialOptions []grpc.DialOption
}

// Client talks to one monitor agent.
type Client struct {
	target  string
	md      metadata.MD
	timeout time.Duration

	mu   sync.RWMutex
	conn *grpc.ClientConn
}

// NewClient creates a client for cfg.Target. The connection is established
// lazily, so an unreachable agent surfaces as codes.Unavailable on the first call.
func NewClient(cfg Config) (*Client, error) {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(transportCredentials(cfg))}, cfg.DialOptions...)
	conn, err := grpc.NewClient(cfg.Target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Target, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		target:  cfg.Target,
		md:      metadata.New(cfg.Metadata),
		timeout: timeout,
		conn:    conn,
	}, nil
}

func transportCredentials(cfg Config) credentials.TransportCredentials {
	switch {
	case !cfg.UseTLS:
		return insecure.NewCredentials()
	case cfg.Insecure:
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true})
	default:
		return credentials.NewClientTLSFromCert(nil, "")
	}
}

// Target returns the agent address.
func (c *Client) Target() string { return c.target }

// GetRecord fetches one sample from the agent.
func (c *Client) GetRecord(ctx context.Context) (map[string]string, error) {
	return c.invoke(ctx, monitorrpc.MethodGetRecord)
}

// GetMonitorsConfig fetches the agent's plugin configuration.
func (c *Client) GetMonitorsConfig(ctx context.Context) (map[string]string, error) {
	return c.invoke(ctx, monitorrpc.MethodGetMonitorsConfig)
}

func (c *Client) invoke(ctx context.Context, method string) (map[string]string, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil, ErrClosed
	}

	if len(c.md) > 0 {
		// Keep metadata already on ctx, such as an injected traceparent.
		for k, vs := range c.md {
			for _, v := range vs {
				ctx = metadata.AppendToOutgoingContext(ctx, k, v)
			}
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, monitorrpc.FullMethod(method), new(emptypb.Empty), resp); err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.target, method, err)
	}
	return monitorrpc.FromStruct(resp), nil
}

// Close closes the connection. Closing twice is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
