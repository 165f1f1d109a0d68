package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

var log = logrus.WithField("module", "session")

const (
	DefaultHost    = "localhost"
	DefaultPort    = 64256
	DefaultTimeout = 30 * time.Second

	maxFrame = 64 << 20
)

// Client talks to the simulator over TCP. Every frame is a 4-byte
// big-endian length followed by a msgpack map. Requests carry "type" and
// "_id"; the response echoes "_id".
type Client struct {
	Host    string
	Port    int
	Timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	nextID uint64
}

var _ Session = (*Client)(nil)

func NewClient(host string, port int) *Client {
	return &Client{Host: host, Port: port, Timeout: DefaultTimeout}
}

func (c *Client) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		c.mu.Unlock()
		return &SessionError{Op: "open", Err: err}
	}
	c.conn = conn
	c.mu.Unlock()

	log.Debugf("connected to %s", c.Addr())
	return c.call(ctx, "Hello", map[string]any{"protocolVersion": "v1"}, nil)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return &SessionError{Op: "close", Err: err}
	}
	log.Debugf("closed connection to %s", c.Addr())
	return nil
}

func (c *Client) LoadScenario(ctx context.Context, sc Scenario) error {
	err := c.call(ctx, "LoadScenario", map[string]any{
		"level":    sc.Level,
		"name":     sc.Name,
		"vehicles": sc.Vehicles,
	}, nil)
	if err != nil {
		return err
	}
	if sc.StepsPerSecond > 0 {
		err = c.call(ctx, "SetDeterministic", map[string]any{"stepsPerSecond": sc.StepsPerSecond}, nil)
		if err != nil {
			return err
		}
	}
	if err := c.call(ctx, "StartScenario", map[string]any{}, nil); err != nil {
		return err
	}
	return c.call(ctx, "SetParticlesEnabled", map[string]any{"enabled": sc.Particles}, nil)
}

func (c *Client) Reset(ctx context.Context) error {
	return c.call(ctx, "RestartScenario", map[string]any{}, nil)
}

func (c *Client) Step(ctx context.Context, ticks int) error {
	return c.call(ctx, "Step", map[string]any{"count": ticks}, nil)
}

func (c *Client) Teleport(ctx context.Context, vid string, pose Pose, reset bool) error {
	return c.call(ctx, "Teleport", map[string]any{
		"vid":   vid,
		"pos":   pose.Pos,
		"rot":   EulerToQuat(pose.Rot),
		"reset": reset,
	}, nil)
}

func (c *Client) SetParts(ctx context.Context, vid string, parts map[string]string) error {
	return c.call(ctx, "SetPartConfig", map[string]any{"vid": vid, "parts": parts}, nil)
}

func (c *Client) Control(ctx context.Context, vid string, ctrl Control) error {
	return c.call(ctx, "Control", map[string]any{"vid": vid, "input": ctrl}, nil)
}

func (c *Client) SetVelocity(ctx context.Context, vid string, mps, seconds float64) error {
	return c.call(ctx, "SetVelocity", map[string]any{"vid": vid, "velocity": mps, "dt": seconds}, nil)
}

func (c *Client) AISetTarget(ctx context.Context, vid, target string) error {
	return c.call(ctx, "SetAiTarget", map[string]any{"vid": vid, "target": target}, nil)
}

func (c *Client) AISetSpeed(ctx context.Context, vid string, mps float64) error {
	return c.call(ctx, "SetAiSpeed", map[string]any{"vid": vid, "speed": mps, "mode": "limit"}, nil)
}

func (c *Client) AISetMode(ctx context.Context, vid, mode string) error {
	return c.call(ctx, "SetAiMode", map[string]any{"vid": vid, "mode": mode}, nil)
}

func (c *Client) Poll(ctx context.Context, vid string) (Sensors, error) {
	var resp struct {
		Data Sensors `msgpack:"data"`
	}
	err := c.call(ctx, "PollSensors", map[string]any{"vid": vid}, &resp)
	return resp.Data, err
}

type header struct {
	Type    string `msgpack:"type"`
	ID      uint64 `msgpack:"_id"`
	Message string `msgpack:"message"`
}

// call sends one request and waits for its response. A transport failure
// drops the connection since the stream can no longer be trusted.
func (c *Client) call(ctx context.Context, op string, req map[string]any, resp any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return &SessionError{Op: op, Err: ErrNotOpen}
	}
	if err := ctx.Err(); err != nil {
		return &SessionError{Op: op, Err: err}
	}

	c.nextID++
	id := c.nextID
	req["type"] = op
	req["_id"] = id

	payload, err := msgpack.Marshal(req)
	if err != nil {
		return &SessionError{Op: op, Err: err}
	}

	var deadline time.Time
	if c.Timeout > 0 {
		deadline = time.Now().Add(c.Timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return c.fail(op, err)
	}

	if err := writeFrame(c.conn, payload); err != nil {
		return c.fail(op, err)
	}
	raw, err := readFrame(c.conn)
	if err != nil {
		return c.fail(op, err)
	}

	var hdr header
	if err := msgpack.Unmarshal(raw, &hdr); err != nil {
		return c.fail(op, fmt.Errorf("%w: %v", ErrProtocol, err))
	}
	if hdr.ID != id {
		return c.fail(op, fmt.Errorf("%w: response id %d, want %d", ErrProtocol, hdr.ID, id))
	}
	if hdr.Type == "Error" {
		return &SessionError{Op: op, Err: &RemoteError{Message: hdr.Message}}
	}

	if resp != nil {
		if err := msgpack.Unmarshal(raw, resp); err != nil {
			return &SessionError{Op: op, Err: fmt.Errorf("%w: %v", ErrProtocol, err)}
		}
	}
	return nil
}

func (c *Client) fail(op string, err error) error {
	c.conn.Close()
	c.conn = nil
	log.Warnf("%s failed, dropping connection: %v", op, err)
	return &SessionError{Op: op, Err: err}
}

func writeFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrame {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrProtocol, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
