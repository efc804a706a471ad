package ipc

import "encoding/json"

// Request method names the backend understands.
const (
	MethodListAssets   = "registry.list_assets"
	MethodListSysdata  = "registry.list_sysdata"
	MethodListAppdata  = "registry.list_appdata"
)

// MaxMessageSize bounds a single JSON IPC message.
const MaxMessageSize = 16 * 1024 * 1024

// ProtocolVersion is the current wire protocol version.
const ProtocolVersion = 1

// Envelope is the length-prefixed wire wrapper for every request and
// response exchanged with the backend.
type Envelope struct {
	ID      string          `json:"id"`
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error,omitempty"`
	HMAC    string          `json:"hmac"`
}

// AuthRequest opens a session with the backend.
type AuthRequest struct {
	ProtocolVersion int    `json:"protocolVersion"`
	PID             int    `json:"pid"`
	BinaryHash      string `json:"binaryHash"`
}

// AuthResponse carries the session key used to HMAC-sign subsequent
// envelopes.
type AuthResponse struct {
	Accepted   bool   `json:"accepted"`
	SessionKey string `json:"sessionKey,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
