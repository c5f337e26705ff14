package jsonrpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by calls on a closed or disconnected client.
var ErrClosed = errors.New("jsonrpc: connection closed")

// NotificationFunc receives notifications sent by the server.
type NotificationFunc func(method string, params json.RawMessage)

// Client issues JSON-RPC calls over a stream. Calls may be made
// concurrently; responses are matched by id.
type Client struct {
	conn   io.ReadWriteCloser
	nextID atomic.Int64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *Response
	notify  NotificationFunc

	done chan struct{}
	err  error
}

// NewClient starts a client reading responses from conn.
func NewClient(conn io.ReadWriteCloser) *Client {
	c := &Client{
		conn:    conn,
		pending: make(map[string]chan *Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// OnNotification sets the handler for server notifications.
func (c *Client) OnNotification(f NotificationFunc) {
	c.mu.Lock()
	c.notify = f
	c.mu.Unlock()
}

// Call sends a request and decodes the result into result, which may be
// nil. Server errors are returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	id := c.nextID.Add(1)
	key := strconv.FormatInt(id, 10)
	ch := make(chan *Response, 1)

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.pending != nil {
			delete(c.pending, key)
		}
		c.mu.Unlock()
	}()

	if err := c.send(method, json.RawMessage(key), params); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.closedErr()
	}
}

// Notify sends a notification.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.send(method, nil, params)
}

func (c *Client) send(method string, id json.RawMessage, params any) error {
	req := Request{JSONRPC: Version, ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s params: %w", method, err)
		}
		req.Params = data
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	in := bufio.NewReader(c.conn)
	var err error
	for {
		var line []byte
		line, err = in.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			c.handleLine(line)
		}
		if err != nil {
			break
		}
	}

	c.mu.Lock()
	if errors.Is(err, io.EOF) {
		err = ErrClosed
	}
	c.err = err
	c.pending = nil
	c.mu.Unlock()
	close(c.done)
}

func (c *Client) handleLine(line []byte) {
	var msg struct {
		Response
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(line, &msg); err != nil {
		return
	}

	if msg.Method != "" && len(msg.ID) == 0 {
		c.mu.Lock()
		f := c.notify
		c.mu.Unlock()
		if f != nil {
			f(msg.Method, msg.Params)
		}
		return
	}

	key := string(bytes.TrimSpace(msg.ID))
	c.mu.Lock()
	ch, ok := c.pending[key]
	c.mu.Unlock()
	if ok {
		resp := msg.Response
		ch <- &resp
	}
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done is closed once the connection stops delivering responses.
func (c *Client) Done() <-chan struct{} { return c.done }
