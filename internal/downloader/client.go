// Package downloader talks to the torrent daemon over its native RPC
// protocol: rencoded payloads, zlib-compressed, behind TLS. One connection
// is opened lazily and reused across calls; a transport failure drops it so
// the next call redials.
package downloader

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/downloader/rencode"
)

const (
	protocolHeader byte = 'D'

	msgResponse = 1
	msgError    = 2
	msgEvent    = 3
)

type Client struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	conn      net.Conn
	requestID int64
}

func NewClient(host string, port int, username, password string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		timeout:  timeout,
		logger:   logger.With().Str("component", "downloader").Logger(),
	}
}

// ListActive returns every torrent the daemon currently tracks, keyed to
// lowercase hashes.
func (c *Client) ListActive(ctx context.Context) ([]TorrentStatus, error) {
	resp, err := c.call(ctx, "core.get_torrents_status", []any{map[string]any{}, statusFields}, nil)
	if err != nil {
		return nil, err
	}

	torrents, ok := resp.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T for get_torrents_status", resp)
	}

	statuses := make([]TorrentStatus, 0, len(torrents))
	for hash, data := range torrents {
		fields, ok := data.(map[string]any)
		if !ok {
			continue
		}
		statuses = append(statuses, mapStatus(hash, fields))
	}
	return statuses, nil
}

// Status looks up one torrent by hash. Returns ErrNotFound when the daemon
// does not track it.
func (c *Client) Status(ctx context.Context, hash string) (*TorrentStatus, error) {
	hash = strings.ToLower(hash)
	resp, err := c.call(ctx, "core.get_torrent_status", []any{hash, statusFields}, nil)
	if err != nil {
		return nil, err
	}

	fields, ok := resp.(map[string]any)
	if !ok || len(fields) == 0 {
		return nil, ErrNotFound
	}

	status := mapStatus(hash, fields)
	return &status, nil
}

// Remove deletes a torrent from the daemon, optionally with its data.
func (c *Client) Remove(ctx context.Context, hash string, removeData bool) error {
	_, err := c.call(ctx, "core.remove_torrent", []any{strings.ToLower(hash), removeData}, nil)
	return err
}

// TestConnection verifies credentials and returns the daemon version.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, "daemon.info", nil, nil)
	if err != nil {
		return "", err
	}
	version, ok := resp.(string)
	if !ok {
		return "", fmt.Errorf("unexpected response type %T for daemon.info", resp)
	}
	return version, nil
}

// Close drops the RPC connection. Safe to call when never connected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropConnLocked()
}

func mapStatus(hash string, fields map[string]any) TorrentStatus {
	status := TorrentStatus{
		Hash:     strings.ToLower(hash),
		Name:     getString(fields, "name"),
		State:    getString(fields, "state"),
		Progress: getFloat(fields, "progress") / 100,
		ETA:      int64(getFloat(fields, "eta")),
	}
	if added := getFloat(fields, "time_added"); added > 0 {
		status.TimeAdded = time.Unix(int64(added), 0)
	}
	return status
}

func (c *Client) call(ctx context.Context, method string, args []any, kwargs map[string]any) (any, error) {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnLocked(ctx); err != nil {
		return nil, err
	}

	result, err := c.sendLocked(ctx, method, args, kwargs)
	if err != nil {
		// the connection is in an unknown state; redial next call
		c.dropConnLocked()
		return nil, err
	}
	return result, nil
}

func (c *Client) ensureConnLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	dialer := &net.Dialer{Timeout: c.timeout}
	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	// daemons ship self-signed certificates
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	c.conn = conn

	if _, err := c.sendLocked(ctx, "daemon.login",
		[]any{c.username, c.password},
		map[string]any{"client_version": "2.1.1"},
	); err != nil {
		c.dropConnLocked()
		if strings.Contains(err.Error(), "BadLoginError") || strings.Contains(err.Error(), "AuthenticationRequired") {
			return ErrAuthFailed
		}
		return fmt.Errorf("daemon login: %w", err)
	}

	c.logger.Debug().Str("addr", addr).Msg("downloader RPC connection established")
	return nil
}

func (c *Client) dropConnLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) sendLocked(ctx context.Context, method string, args []any, kwargs map[string]any) (any, error) {
	c.requestID++
	id := c.requestID

	body, err := rencode.Encode([]any{[]any{id, method, args, kwargs}})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("compress %s request: %w", method, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress %s request: %w", method, err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	frame := make([]byte, 5+compressed.Len())
	frame[0] = protocolHeader
	binary.BigEndian.PutUint32(frame[1:5], uint32(compressed.Len()))
	copy(frame[5:], compressed.Bytes())
	if _, err := c.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("write %s request: %w", method, err)
	}

	// events may arrive interleaved with the response
	for {
		message, err := c.readMessageLocked()
		if err != nil {
			return nil, fmt.Errorf("read %s response: %w", method, err)
		}

		fields, ok := message.([]any)
		if !ok || len(fields) < 2 {
			return nil, fmt.Errorf("malformed RPC message for %s", method)
		}
		msgType, _ := fields[0].(int64)

		if msgType == msgEvent {
			continue
		}

		respID, _ := fields[1].(int64)
		if respID != id {
			c.logger.Warn().Int64("want", id).Int64("got", respID).Msg("out-of-order RPC response dropped")
			continue
		}

		switch msgType {
		case msgResponse:
			if len(fields) < 3 {
				return nil, nil
			}
			return fields[2], nil
		case msgError:
			return nil, rpcError(fields)
		default:
			return nil, fmt.Errorf("unknown RPC message type %d", msgType)
		}
	}
}

func (c *Client) readMessageLocked() (any, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, err
	}
	if header[0] != protocolHeader {
		return nil, fmt.Errorf("bad protocol header 0x%02x", header[0])
	}

	length := binary.BigEndian.Uint32(header[1:5])
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, err
	}

	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	defer zr.Close()

	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}

	return rencode.Decode(body)
}

func rpcError(fields []any) error {
	excType := "RPCError"
	excMsg := ""
	if len(fields) > 2 {
		if s, ok := fields[2].(string); ok {
			excType = s
		}
	}
	if len(fields) > 3 {
		switch m := fields[3].(type) {
		case string:
			excMsg = m
		case []any:
			parts := make([]string, 0, len(m))
			for _, p := range m {
				if s, ok := p.(string); ok {
					parts = append(parts, s)
				}
			}
			excMsg = strings.Join(parts, " ")
		}
	}
	return fmt.Errorf("daemon error %s: %s", excType, excMsg)
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}
