// Package agent talks to the in-process GUI agent over newline-delimited
// JSON-RPC 2.0 and exposes it as a finder transport.
package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/devicelab-dev/guilocator/pkg/logger"
)

// DefaultTimeout bounds a single call when neither the client nor the
// context sets a deadline.
const DefaultTimeout = 30 * time.Second

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("agent connection closed")

// Client communicates with the agent. Calls are serialized: the agent
// answers requests in order on a single connection.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	nextID  uint64
	timeout time.Duration
	closed  bool
}

// Dial connects to the agent at addr (host:port).
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	var d net.Dialer
	if timeout > 0 {
		d.Timeout = timeout
	}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to agent %s: %w", addr, err)
	}
	return NewClient(conn, timeout), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: timeout,
	}
}

// Call invokes method and decodes the result into result, which may be nil.
// Agent-side failures are returned as *RPCError. An I/O failure leaves the
// stream out of sync, so the client closes itself.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.nextID++
	req := Request{JSONRPC: Version, Method: method, Params: params, ID: c.nextID}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	// Unblock a pending read as soon as ctx is canceled. A callback that has
	// already started must finish before the next call sets its deadline.
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
		close(fired)
	})
	defer func() {
		if !stop() {
			<-fired
		}
	}()

	start := time.Now()
	line, err := c.roundTrip(data)
	elapsed := time.Since(start)
	if err != nil {
		c.closeLocked()
		logger.Debug("agent %s [%v] ERROR: %v", method, elapsed, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", method, ctxErr)
		}
		if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
			return fmt.Errorf("%s: %w", method, context.DeadlineExceeded)
		}
		return fmt.Errorf("%s: %w", method, err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		c.closeLocked()
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if resp.ID != req.ID {
		c.closeLocked()
		return fmt.Errorf("%s: response id %d does not match request id %d", method, resp.ID, req.ID)
	}
	if resp.Error != nil {
		logger.Debug("agent %s [%v] ERR:%d %s", method, elapsed, resp.Error.Code, resp.Error.Message)
		return resp.Error
	}
	logger.Debug("agent %s [%v] OK", method, elapsed)

	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) roundTrip(data []byte) ([]byte, error) {
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

// Ping checks that the agent is answering.
func (c *Client) Ping(ctx context.Context) error {
	var pong string
	if err := c.Call(ctx, MethodPing, struct{}{}, &pong); err != nil {
		return err
	}
	if pong != "pong" {
		return fmt.Errorf("ping: unexpected reply %q", pong)
	}
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
