package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/finder"
	"github.com/devicelab-dev/guilocator/pkg/locator"
)

type serverRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      uint64          `json:"id"`
}

// handler returns a result or an *RPCError for one request.
type handler func(req serverRequest) (any, *RPCError)

// newTestAgent starts a line-oriented JSON-RPC server and returns a
// connected client.
func newTestAgent(t *testing.T, h handler) *Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadBytes('\n')
			if err != nil {
				return
			}
			var req serverRequest
			if err := json.Unmarshal(line, &req); err != nil {
				return
			}
			result, rpcErr := h(req)
			resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
			if rpcErr != nil {
				resp["error"] = rpcErr
			} else {
				resp["result"] = result
			}
			data, _ := json.Marshal(resp)
			if _, err := conn.Write(append(data, '\n')); err != nil {
				return
			}
		}
	}()

	c, err := Dial(context.Background(), ln.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func normalized(t *testing.T, raw string, tk core.Toolkit) locator.NormalizedLocator {
	t.Helper()
	loc, err := locator.Parse(raw)
	require.NoError(t, err)
	return locator.Normalize(loc, tk)
}

func TestPing(t *testing.T) {
	c := newTestAgent(t, func(req serverRequest) (any, *RPCError) {
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, MethodPing, req.Method)
		return "pong", nil
	})
	require.NoError(t, c.Ping(context.Background()))
}

func TestPing_UnexpectedReply(t *testing.T) {
	c := newTestAgent(t, func(serverRequest) (any, *RPCError) {
		return "hello", nil
	})
	assert.ErrorContains(t, c.Ping(context.Background()), "unexpected reply")
}

func TestCall_IDsIncrease(t *testing.T) {
	var last atomic.Uint64
	c := newTestAgent(t, func(req serverRequest) (any, *RPCError) {
		assert.Greater(t, req.ID, last.Load())
		last.Store(req.ID)
		return nil, nil
	})
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Call(context.Background(), "noop", nil, nil))
	}
	assert.Equal(t, uint64(3), last.Load())
}

func TestCall_RPCError(t *testing.T) {
	c := newTestAgent(t, func(serverRequest) (any, *RPCError) {
		return nil, &RPCError{Code: CodeStaleElement, Message: "component disposed"}
	})

	err := c.Call(context.Background(), MethodGetElementProperties, map[string]any{"componentId": 1}, nil)
	require.Error(t, err)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "agent error -32004: component disposed", rpcErr.Error())
	assert.True(t, IsStale(err))
	assert.False(t, IsNotFound(err))

	// RPC errors keep the connection usable.
	err = c.Call(context.Background(), MethodPing, nil, nil)
	assert.True(t, IsStale(err))
}

func TestCall_Timeout(t *testing.T) {
	c := newTestAgent(t, func(serverRequest) (any, *RPCError) {
		time.Sleep(500 * time.Millisecond)
		return "pong", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Ping(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The stream is out of sync after a timeout.
	assert.ErrorIs(t, c.Ping(context.Background()), ErrClosed)
}

func TestCall_Canceled(t *testing.T) {
	c := newTestAgent(t, func(serverRequest) (any, *RPCError) { return "pong", nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Ping(ctx), context.Canceled)
	// Nothing was sent, so the client is still usable.
	assert.NoError(t, c.Ping(context.Background()))
}

func TestCall_CancelAfterReply(t *testing.T) {
	// A cancellation racing the end of a successful call must not leak into
	// the next call.
	for i := 0; i < 50; i++ {
		c := newTestAgent(t, func(serverRequest) (any, *RPCError) { return "pong", nil })

		ctx, cancel := context.WithCancel(context.Background())
		i := i
		go func() {
			time.Sleep(time.Duration(i%5) * 20 * time.Microsecond)
			cancel()
		}()
		if err := c.Ping(ctx); err != nil {
			assert.ErrorIs(t, err, context.Canceled)
			continue
		}
		require.NoError(t, c.Ping(context.Background()), "iteration %d", i)
	}
}

func TestClose(t *testing.T) {
	c := newTestAgent(t, func(serverRequest) (any, *RPCError) { return "pong", nil })
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), ErrClosed)
}

func TestDial_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), addr, time.Second)
	assert.ErrorContains(t, err, "connect to agent")
}

func TestDriver_FindElements(t *testing.T) {
	params := make(chan map[string]any, 1)
	c := newTestAgent(t, func(req serverRequest) (any, *RPCError) {
		assert.Equal(t, MethodFindElements, req.Method)
		var p map[string]any
		assert.NoError(t, json.Unmarshal(req.Params, &p))
		params <- p
		return []any{
			map[string]any{"hashCode": 11, "className": "javax.swing.JButton"},
			map[string]any{"widgetId": 12},
			13,
		}, nil
	})

	ids, err := New(c).FindElements(context.Background(), normalized(t, "JButton[text='OK']", core.ToolkitSwing))
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12, 13}, ids)
	got := <-params
	assert.Equal(t, "class", got["locatorType"])
	assert.Equal(t, "JButton", got["value"])
}

func TestDriver_FindElements_NotFound(t *testing.T) {
	c := newTestAgent(t, func(serverRequest) (any, *RPCError) {
		return nil, &RPCError{Code: CodeElementNotFound, Message: "no match"}
	})

	ids, err := New(c).FindElements(context.Background(), normalized(t, "Button", core.ToolkitSWT))
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotNil(t, ids)
}

func TestDriver_FindElements_BadPayload(t *testing.T) {
	c := newTestAgent(t, func(serverRequest) (any, *RPCError) {
		return []any{map[string]any{"className": "Button"}}, nil
	})

	_, err := New(c).FindElements(context.Background(), normalized(t, "Button", core.ToolkitSWT))
	assert.ErrorContains(t, err, "missing id")
}

func TestDriver_Element(t *testing.T) {
	c := newTestAgent(t, func(req serverRequest) (any, *RPCError) {
		var p map[string]int64
		assert.NoError(t, json.Unmarshal(req.Params, &p))
		switch p["componentId"] {
		case 7:
			return map[string]any{"hashCode": 7, "className": "javax.swing.JButton", "text": "OK", "enabled": false}, nil
		case 8:
			return map[string]any{"widgetId": 8, "className": "org.eclipse.swt.widgets.Text"}, nil
		case 9:
			return map[string]any{"className": "org.eclipse.swt.widgets.Label", "text": "Name"}, nil
		}
		return nil, &RPCError{Code: CodeElementNotFound, Message: "unknown component"}
	})
	d := New(c)
	ctx := context.Background()

	el, err := d.Element(ctx, core.ToolkitSwing, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), el.ID)
	assert.Equal(t, "OK", el.Text)
	assert.False(t, el.Enabled)

	el, err = d.Element(ctx, core.ToolkitSWT, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), el.ID)

	el, err = d.Element(ctx, core.ToolkitSWT, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), el.ID)
	assert.Equal(t, "Name", el.Text)

	_, err = d.Element(ctx, core.ToolkitSWT, 10)
	assert.True(t, IsNotFound(err))
}

func TestDriver_Toolkit(t *testing.T) {
	c := newTestAgent(t, func(serverRequest) (any, *RPCError) { return "swt", nil })
	tk, err := New(c).Toolkit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.ToolkitSWT, tk)
}

func TestDriver_WithFinder(t *testing.T) {
	var finds atomic.Int32
	c := newTestAgent(t, func(req serverRequest) (any, *RPCError) {
		switch req.Method {
		case MethodFindElements:
			finds.Add(1)
			return []any{map[string]any{"hashCode": 21}}, nil
		case MethodGetElementProperties:
			return map[string]any{"hashCode": 21, "className": "org.eclipse.swt.widgets.Button", "text": "Apply"}, nil
		}
		return nil, &RPCError{Code: CodeMethodNotFound, Message: req.Method}
	})

	f := finder.New(New(c), core.ToolkitSWT, finder.WithCaches(cache.New(cache.DefaultConfig())))
	ctx := context.Background()

	els, err := f.FindElements(ctx, "Button[text='Apply']")
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "Apply", els[0].Text)

	_, err = f.Find(ctx, "JButton[text='Apply']")
	require.NoError(t, err)
	assert.Equal(t, int32(1), finds.Load(), "equivalent locator served from the finder cache")

	f.AfterAction(21)
	_, err = f.Find(ctx, "Button[text='Apply']")
	require.NoError(t, err)
	assert.Equal(t, int32(2), finds.Load())
}
