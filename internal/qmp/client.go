package qmp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// Default timeouts for QMP sessions.
const (
	// defaultConnectTimeout bounds the dial plus the full handshake.
	defaultConnectTimeout = 5 * time.Second

	// defaultCommandTimeout bounds a single command round trip.
	defaultCommandTimeout = 10 * time.Second
)

// Config holds QMP session configuration. Zero values use the defaults.
type Config struct {
	// ConnectTimeout is the maximum time for dial, greeting, and
	// capabilities negotiation combined. Default: 5 seconds.
	ConnectTimeout time.Duration

	// CommandTimeout is the maximum time for one command round trip.
	// Default: 10 seconds.
	CommandTimeout time.Duration
}

// Client is one synchronous QMP session with a single VM monitor.
//
// The channel is half-duplex and strictly request/response. A Client is
// not safe for concurrent Execute calls; the orchestrator issues one
// command at a time, which is the intended usage.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	cfg    Config

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// request is the client→server message shape.
type request struct {
	Execute   string         `json:"execute"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// response is the server→client message shape. Exactly one of Return and
// Error is set on a command response; Event marks an asynchronous event.
type response struct {
	Return json.RawMessage `json:"return,omitempty"`
	Error  *CommandError   `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
}

// greeting is the unsolicited server banner sent on connect.
type greeting struct {
	QMP json.RawMessage `json:"QMP"`
}

// Connect opens a QMP session on the given unix socket.
//
// It dials with a bounded timeout, reads the server greeting, negotiates
// capabilities with qmp_capabilities, and succeeds only on an explicit
// empty-success acknowledgement. On any failure the socket is closed
// before returning; Connect never leaks a connection.
//
// Parameters:
//   - ctx: Context for cancellation (tightens the connect deadline if sooner)
//   - socketPath: Path to the VM's QMP unix socket
//   - cfg: Session timeouts (zero values use defaults)
//
// Returns:
//   - *Client: Established session ready for Execute
//   - error: ErrConnectionFailed or ErrProtocol, wrapped with the cause
func Connect(ctx context.Context, socketPath string, cfg Config) (*Client, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(connectCtx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, socketPath, err)
	}

	c := &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		cfg:    cfg,
	}

	// The whole handshake shares the connect deadline.
	deadline, _ := connectCtx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: set deadline: %w", ErrConnectionFailed, err)
	}

	if err := c.readGreeting(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := c.negotiateCapabilities(); err != nil {
		conn.Close()
		return nil, err
	}

	// Clear the handshake deadline; Execute sets its own.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: clear deadline: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// readGreeting consumes the unsolicited server banner.
func (c *Client) readGreeting() error {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("%w: reading greeting: %w", ErrConnectionFailed, err)
	}

	var g greeting
	if err := json.Unmarshal(line, &g); err != nil {
		return fmt.Errorf("%w: malformed greeting: %w", ErrProtocol, err)
	}
	if len(g.QMP) == 0 {
		return fmt.Errorf("%w: greeting missing QMP member", ErrProtocol)
	}
	return nil
}

// negotiateCapabilities sends qmp_capabilities and requires the explicit
// empty-success acknowledgement that ends the handshake.
func (c *Client) negotiateCapabilities() error {
	if err := c.writeRequest("qmp_capabilities", nil); err != nil {
		return fmt.Errorf("%w: capabilities: %w", ErrConnectionFailed, err)
	}

	resp, err := c.readResponse()
	if err != nil {
		return fmt.Errorf("%w: capabilities: %w", ErrConnectionFailed, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%w: capabilities rejected: %w", ErrConnectionFailed, resp.Error)
	}
	if !isEmptyObject(resp.Return) {
		return fmt.Errorf("%w: capabilities acknowledgement %q", ErrProtocol, resp.Return)
	}
	return nil
}

// Execute sends one command and reads its response.
//
// A response carrying a QMP error object is returned as *CommandError and
// leaves the session usable. Transport and framing failures are returned
// as ErrProtocol or the underlying I/O error; the caller should close the
// session after those.
//
// Parameters:
//   - ctx: Context for cancellation (tightens the command deadline if sooner)
//   - command: QMP command name (e.g. "device_add")
//   - args: Command arguments, or nil
//
// Returns:
//   - json.RawMessage: The response's return member
//   - error: *CommandError, ErrProtocol, ErrClosed, or an I/O error
func (c *Client) Execute(ctx context.Context, command string, args map[string]any) (json.RawMessage, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	deadline := time.Now().Add(c.cfg.CommandTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if err := c.writeRequest(command, args); err != nil {
		return nil, err
	}

	// Skip asynchronous events until the command response arrives.
	for {
		resp, err := c.readResponse()
		if err != nil {
			return nil, err
		}
		if resp.Event != "" {
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Return, nil
	}
}

// Close closes the underlying socket. It is safe to call multiple times
// and on every error path; only the first call closes the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed = true
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// writeRequest serializes one newline-terminated request.
func (c *Client) writeRequest(command string, args map[string]any) error {
	msg, err := json.Marshal(request{Execute: command, Arguments: args})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", command, err)
	}
	msg = append(msg, '\n')

	if _, err := c.conn.Write(msg); err != nil {
		return fmt.Errorf("writing %s: %w", command, err)
	}
	return nil
}

// readResponse reads and decodes one newline-terminated message.
func (c *Client) readResponse() (*response, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %w", ErrProtocol, err)
	}
	if resp.Event == "" && resp.Error == nil && resp.Return == nil {
		return nil, fmt.Errorf("%w: response has neither return nor error", ErrProtocol)
	}
	return &resp, nil
}

// isEmptyObject reports whether raw is the JSON empty object.
func isEmptyObject(raw json.RawMessage) bool {
	return len(raw) > 0 && string(bytes.TrimSpace(raw)) == "{}"
}
