// Package ipc is a client to the Sentinel backend process: a
// length-prefixed, HMAC-signed JSON envelope protocol carried over a
// named duplex pipe, used by the Asset Registry (catalog lookup) and
// the Data Pump (system/app data polling).
package ipc

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sentinel-wallpaper/engine/internal/asset"
	"github.com/sentinel-wallpaper/engine/internal/logging"
)

var log = logging.L("ipc")

const (
	dialTimeout     = 5 * time.Second
	requestTimeout  = 5 * time.Second
	backoffInitial  = 100 * time.Millisecond
	backoffMax      = 2 * time.Second
)

// Client is a reconnecting request/response client over the named
// pipe, used synchronously by callers that issue one RPC at a time.
type Client struct {
	pipeName string

	mu      sync.Mutex
	conn    *Conn
	backoff time.Duration
}

func New(pipeName string) *Client {
	return &Client{pipeName: pipeName, backoff: backoffInitial}
}

// dialPipe is swapped out in tests; the real implementations live in
// dial_windows.go / dial_other.go and register themselves in init.
var dialPipe func(pipeName string, timeout time.Duration) (net.Conn, error)

// Close disconnects, if connected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// ListAssets issues registry.list_assets and returns the decoded rows.
func (c *Client) ListAssets() ([]asset.CatalogEntry, error) {
	var out []asset.CatalogEntry
	if err := c.call(MethodListAssets, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSysdata issues registry.list_sysdata and returns the raw
// section-keyed object for the Data Pump to flatten.
func (c *Client) ListSysdata() (map[string]json.RawMessage, error) {
	var out map[string]json.RawMessage
	if err := c.call(MethodListSysdata, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AppdataRow is one monitor's worth of registry.list_appdata.
type AppdataRow struct {
	Windows []WindowInfo `json:"windows"`
}

// WindowInfo describes one top-level window as reported by the backend.
type WindowInfo struct {
	Focused     bool   `json:"focused"`
	AppName     string `json:"app_name"`
	ExePath     string `json:"exe_path"`
	WindowTitle string `json:"window_title"`
	PID         int    `json:"pid"`
	WindowState string `json:"window_state"`
	Size        [2]int `json:"size"`
	Position    [2]int `json:"position"`
}

// ListAppdata issues registry.list_appdata and returns it keyed by
// monitor id.
func (c *Client) ListAppdata() (map[string]AppdataRow, error) {
	var out map[string]AppdataRow
	if err := c.call(MethodListAppdata, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// call performs one request/response round trip, connecting (or
// reconnecting, with exponential backoff applied to the NEXT attempt
// on failure) as needed.
func (c *Client) call(method string, payload any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connectLocked(); err != nil {
			return err
		}
	}

	reqID, err := newRequestID()
	if err != nil {
		return err
	}

	var rawPayload json.RawMessage
	if payload != nil {
		rawPayload, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("ipc: marshal request payload: %w", err)
		}
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(requestTimeout)); err != nil {
		return err
	}
	if err := c.conn.Send(&Envelope{ID: reqID, Type: method, Payload: rawPayload}); err != nil {
		c.invalidateLocked()
		return fmt.Errorf("ipc: send %s: %w", method, err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(requestTimeout)); err != nil {
		return err
	}
	resp, err := c.conn.Recv()
	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("ipc: recv %s response: %w", method, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("ipc: backend error for %s: %s", method, resp.Error)
	}

	c.backoff = backoffInitial
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return fmt.Errorf("ipc: decode %s response: %w", method, err)
	}
	return nil
}

// connectLocked dials the pipe and wraps it in a Conn. No handshake or
// session-key exchange takes place: envelopes are signed with the zero
// key. On a dial failure it sleeps for the current backoff and doubles
// it for the next attempt. Caller holds c.mu.
func (c *Client) connectLocked() error {
	raw, err := dialPipe(c.pipeName, dialTimeout)
	if err != nil {
		time.Sleep(c.backoff)
		c.backoff = nextBackoff(c.backoff)
		return fmt.Errorf("ipc: dial: %w", err)
	}
	c.conn = NewConn(raw)
	log.Info("ipc connected", "pipe", c.pipeName)
	return nil
}

func (c *Client) invalidateLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > backoffMax {
		return backoffMax
	}
	return next
}

func newRequestID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ipc: generate request id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
