// Package sdk provides the client-side library for the log service.
// It supports both remote connections via TCP/TLS and a local embedded store.
package sdk

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/raj2399/Task-Evallo/pkg/schema"
)

// RemoteError is an ERR reply from the daemon.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string { return e.Msg }

// Unwrap lets callers test storage failures on the daemon with errors.Is(err, ErrPersistence).
func (e *RemoteError) Unwrap() error {
	if strings.HasPrefix(e.Msg, "failed to") {
		return ErrPersistence
	}
	return nil
}

// Client is a remote client for the log daemon.
// It implements the LogStore interface.
type Client struct {
	addr   string
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex // Protects concurrent access to the connection
}

// Connect establishes a TLS-encrypted connection to a remote daemon.
// If LOGQ_DISABLE_TLS is set to "true", it falls back to plain TCP.
func Connect(addr string) (*Client, error) {
	c := &Client{addr: addr}
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	var conn net.Conn
	var err error

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	if os.Getenv("LOGQ_DISABLE_TLS") == "true" {
		conn, err = dialer.Dial("tcp", c.addr)
	} else {
		config := &tls.Config{
			InsecureSkipVerify: true, // the daemon uses a self-signed certificate
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", c.addr, config)
	}

	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// sendAndReceive sends one command line and returns the reply without its "OK " prefix.
// Only idempotent commands are retried; a write is never sent twice.
func (c *Client) sendAndReceive(cmd string, idempotent bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	attempts := 1
	if idempotent {
		attempts = 3
	}

	var err error
	var resp string

	for i := 0; i < attempts; i++ {
		// Ensure we have a connection
		if c.conn == nil {
			if reconnectErr := c.reconnect(); reconnectErr != nil {
				err = fmt.Errorf("reconnect failed: %w", reconnectErr)
				time.Sleep(time.Duration((i+1)*200) * time.Millisecond)
				continue
			}
		}

		c.conn.SetDeadline(time.Now().Add(30 * time.Second))

		_, err = fmt.Fprint(c.conn, cmd+"\n")
		if err == nil {
			resp, err = c.reader.ReadString('\n')
			if err == nil {
				resp = strings.TrimSpace(resp)
				if strings.HasPrefix(resp, "ERR") {
					return "", &RemoteError{Msg: strings.TrimSpace(strings.TrimPrefix(resp, "ERR"))}
				}
				return strings.TrimPrefix(resp, "OK "), nil
			}
		}

		fmt.Fprintf(os.Stderr, "[logq SDK] Attempt %d failed: %v\n", i+1, err)

		// Drop the broken connection; the next attempt or call dials again.
		c.conn.Close()
		c.conn = nil

		if i+1 < attempts {
			time.Sleep(time.Duration((i+1)*200) * time.Millisecond)
		}
	}

	return "", fmt.Errorf("failed after %d attempts. last error: %w", attempts, err)
}

// Ingest sends a raw JSON record (or array of records) and lets the daemon validate it.
// The reply payload is returned as is.
func (c *Client) Ingest(raw []byte) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return c.sendAndReceive("INGEST "+compact.String(), false)
}

// Append implements Appender.
func (c *Client) Append(rec schema.LogRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = c.sendAndReceive("INGEST "+string(data), false)
	return err
}

// ReadAll implements Reader.
func (c *Client) ReadAll() ([]schema.LogRecord, error) {
	resp, err := c.sendAndReceive("DUMP", true)
	if err != nil {
		return nil, err
	}
	return schema.DecodeAll([]byte(resp))
}

// Query runs a filtered, paginated query. params uses the same keys as the HTTP query string.
func (c *Client) Query(params map[string]string) (schema.Page, error) {
	var res schema.Page
	data, err := json.Marshal(params)
	if err != nil {
		return res, err
	}
	resp, err := c.sendAndReceive("QUERY "+string(data), true)
	if err != nil {
		return res, err
	}
	err = json.Unmarshal([]byte(resp), &res)
	return res, err
}

func (c *Client) Ping() error {
	resp, err := c.sendAndReceive("PING", true)
	if err != nil {
		return err
	}
	if resp != "PONG" {
		return fmt.Errorf("unexpected reply %q", resp)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	err := c.conn.Close()
	c.conn = nil
	return err
}
