package protocol

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/roach88/qcore/internal/channel"
)

// Client issues typed commands over a channel.Conn.
type Client struct {
	conn   channel.Conn
	blockN func() int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBlockTags overrides the source of block marker integers.
func WithBlockTags(next func() int) ClientOption {
	return func(c *Client) {
		c.blockN = next
	}
}

// NewClient creates a Client over conn.
func NewClient(conn channel.Conn, opts ...ClientOption) *Client {
	c := &Client{
		conn:   conn,
		blockN: func() int { return rand.IntN(math.MaxInt32) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Conn returns the underlying transport.
func (c *Client) Conn() channel.Conn {
	return c.conn
}

// Command sends cmd and returns the trimmed result.
func (c *Client) Command(ctx context.Context, cmd string, args ...Arg) (string, error) {
	line, err := Encode(cmd, args...)
	if err != nil {
		return "", err
	}
	return c.exchange(ctx, line)
}

// Name sends cmd and returns its result as a single name with line breaks
// removed.
func (c *Client) Name(ctx context.Context, cmd string, args ...Arg) (string, error) {
	res, err := c.Command(ctx, cmd, args...)
	if err != nil {
		return "", err
	}
	return lineBreak.ReplaceAllString(res, ""), nil
}

// List sends cmd and returns its result split into lines.
func (c *Client) List(ctx context.Context, cmd string, args ...Arg) ([]string, error) {
	res, err := c.Command(ctx, cmd, args...)
	if err != nil {
		return nil, err
	}
	return SplitList(res), nil
}

// Block sends cmd followed by payload in block mode.
func (c *Client) Block(ctx context.Context, cmd, payload string, args ...Arg) (string, error) {
	line, err := Encode(cmd, args...)
	if err != nil {
		return "", err
	}
	lines := append([]string{line}, BlockLines(c.blockN(), payload)...)
	return c.exchange(ctx, lines...)
}

// Console sends a line typed by a user without re-encoding it. A missing
// terminating semicolon is added.
func (c *Client) Console(ctx context.Context, line string) (string, error) {
	line = strings.TrimSpace(line)
	if !strings.HasSuffix(line, ";") {
		line += ";"
	}
	return c.exchange(ctx, line)
}

func (c *Client) exchange(ctx context.Context, lines ...string) (string, error) {
	payload, err := c.conn.Exchange(ctx, lines...)
	if err != nil {
		return "", err
	}
	return Decode(payload)
}
