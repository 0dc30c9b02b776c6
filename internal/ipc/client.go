package ipc

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"hookd/internal/daemon"
	"hookd/internal/hook"
)

// Client talks the one-document protocol. It holds no connection state:
// every call dials, exchanges one request, and closes.
type Client struct {
	path    string
	timeout time.Duration
}

// NewClient targets the socket at path. timeout covers the full exchange of
// one request.
func NewClient(path string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{path: path, timeout: timeout}
}

// Ping reports whether a daemon is accepting connections on the socket.
func (c *Client) Ping() bool {
	conn, err := net.DialTimeout("unix", c.path, c.timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Send writes one request envelope and returns the raw response bytes.
func (c *Client) Send(req hook.Request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.exchange(payload)
}

// Forward relays a raw hook payload for the named event and returns the
// daemon's response verbatim.
func (c *Client) Forward(event string, hookInput []byte) ([]byte, error) {
	return c.Send(hook.Request{Event: event, HookInput: hookInput})
}

func (c *Client) exchange(payload []byte) ([]byte, error) {
	conn, err := net.DialTimeout("unix", c.path, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("dial daemon socket: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	// Half-close signals end-of-request; the server reads to EOF.
	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return nil, fmt.Errorf("close write side: %w", err)
		}
	}

	resp, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

func (c *Client) system(req daemon.SystemRequest, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode system request: %w", err)
	}
	resp, err := c.Send(hook.Request{Event: string(hook.SystemEvent), HookInput: payload})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("decode system response: %w", err)
	}
	return nil
}

// Logs fetches up to count buffered log events at or above level.
func (c *Client) Logs(count int, level string) (*daemon.LogsResponse, error) {
	var resp daemon.LogsResponse
	err := c.system(daemon.SystemRequest{Action: daemon.ActionGetLogs, Count: count, Level: level}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches the daemon's runtime counters.
func (c *Client) Health() (*daemon.Health, error) {
	var resp daemon.Health
	if err := c.system(daemon.SystemRequest{Action: daemon.ActionHealth}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMode returns the daemon's current mode.
func (c *Client) GetMode() (*daemon.ModeResponse, error) {
	var resp daemon.ModeResponse
	if err := c.system(daemon.SystemRequest{Action: daemon.ActionGetMode}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetMode switches the daemon's mode.
func (c *Client) SetMode(mode string) (*daemon.ModeResponse, error) {
	var resp daemon.ModeResponse
	if err := c.system(daemon.SystemRequest{Action: daemon.ActionSetMode, Mode: mode}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Handlers lists the daemon's registered handler chains.
func (c *Client) Handlers() (*daemon.HandlersResponse, error) {
	var resp daemon.HandlersResponse
	if err := c.system(daemon.SystemRequest{Action: daemon.ActionHandlers}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
