package control

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/goccy/go-json"

	"github.com/openpony/ponylog/config"
)

// Client is a control protocol client. One request is in flight at a
// time; the protocol has no pipelining.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	timeout time.Duration
}

// Dial connects to a control server.
func Dial(address string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial control: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), config.DefaultMaxRequestSize)

	return &Client{conn: conn, scanner: scanner, timeout: timeout}, nil
}

// Do sends one request and reads its response.
func (c *Client) Do(req Request) (Response, error) {
	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	data = append(data, '\n')

	if _, err := c.conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("read response: %w", err)
		}
		return Response{}, fmt.Errorf("connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
