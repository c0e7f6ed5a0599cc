package v1alpha1

import "time"

// ProtocolMessageType defines types of wire-level messages on the local
// transport
type ProtocolMessageType string

const (
	// ProtocolMessageLocalAuth is the controller's authentication request
	ProtocolMessageLocalAuth ProtocolMessageType = "LOCAL_AUTH"
	// ProtocolMessageLocalAuthResult is the host's authentication reply
	ProtocolMessageLocalAuthResult ProtocolMessageType = "LOCAL_AUTH_RESULT"
	// ProtocolMessageCommand wraps exactly one ClientCommand
	ProtocolMessageCommand ProtocolMessageType = "COMMAND"
	// ProtocolMessageStateSync carries the full host state
	ProtocolMessageStateSync ProtocolMessageType = "STATE_SYNC"
	// ProtocolMessagePing is a liveness probe
	ProtocolMessagePing ProtocolMessageType = "PING"
	// ProtocolMessagePong answers a ping
	ProtocolMessagePong ProtocolMessageType = "PONG"
)

// AuthErrorDisplayMismatch is returned when the authenticated displayId
// does not match the host's identity.
const AuthErrorDisplayMismatch = "DISPLAY_MISMATCH"

// ProtocolMessage is one record on the local transport wire. Records are
// UTF-8 JSON objects separated by newlines.
type ProtocolMessage struct {
	// TypeMeta describes API version details
	TypeMeta `json:",inline"`
	// Type indicates the kind of message
	Type ProtocolMessageType `json:"type"`
	// Auth contains handshake credentials for LOCAL_AUTH
	Auth *LocalAuth `json:"auth,omitempty"`
	// AuthResult contains the handshake outcome for LOCAL_AUTH_RESULT
	AuthResult *LocalAuthResult `json:"authResult,omitempty"`
	// Command contains the wrapped command for COMMAND
	Command *ClientCommand `json:"command,omitempty"`
	// State contains the full host state for STATE_SYNC
	State *HostState `json:"state,omitempty"`
	// Timestamp indicates when the message was created
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// LocalAuth carries the controller's credentials for the local handshake
type LocalAuth struct {
	// Token is the bearer token whose tenant claim is checked by the host
	Token string `json:"token"`
	// DisplayID is the display the controller believes it is talking to
	DisplayID string `json:"displayId"`
}

// LocalAuthResult reports the outcome of a LOCAL_AUTH handshake
type LocalAuthResult struct {
	// Success indicates whether the connection is now authenticated
	Success bool `json:"success"`
	// Error classifies the failure when Success is false
	Error string `json:"error,omitempty"`
}
