package v1alpha1

// TransportKind identifies which path a controller is using to reach a
// display
type TransportKind string

const (
	// TransportLocal is the direct LAN stream
	TransportLocal TransportKind = "local"
	// TransportCloud is the relay subscription
	TransportCloud TransportKind = "cloud"
)

// ConnectionState is the controller-observed lifecycle of a connection
type ConnectionState string

const (
	// ConnectionDisconnected means no transport is up
	ConnectionDisconnected ConnectionState = "disconnected"
	// ConnectionConnecting means attempts are in flight
	ConnectionConnecting ConnectionState = "connecting"
	// ConnectionConnected means at least one transport is up
	ConnectionConnected ConnectionState = "connected"
)

// DisplaySessionStatus is the per-display view inside a ConnectionStatus
type DisplaySessionStatus struct {
	// State is the connection lifecycle for this display
	State ConnectionState `json:"state"`
	// Transport is the preferred path currently in use, empty when none
	Transport TransportKind `json:"transport,omitempty"`
	// LastState is the most recent host state received, if any
	LastState *HostState `json:"lastState,omitempty"`
}

// ConnectionStatus aggregates transport state across all controlled
// displays. It is created when the controller connects and discarded on
// disconnect; it is never persisted.
type ConnectionStatus struct {
	// State summarizes the overall connection lifecycle
	State ConnectionState `json:"state"`
	// Transport is the best transport across displays, empty when none
	Transport TransportKind `json:"transport,omitempty"`
	// PerDisplay holds per-display detail keyed by displayId
	PerDisplay map[string]DisplaySessionStatus `json:"perDisplay,omitempty"`
}
