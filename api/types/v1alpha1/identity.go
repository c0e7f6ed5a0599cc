package v1alpha1

import "time"

// OnlineThreshold is how recently a display must have heartbeated to be
// considered online when presence events are unavailable.
const OnlineThreshold = 60 * time.Second

// DisplayIdentity describes a paired display as recorded in the backing
// store. The advertised local address is advisory; it may be stale if the
// host changed networks since the last advertisement.
type DisplayIdentity struct {
	// TypeMeta describes API version details
	TypeMeta `json:",inline"`
	// DisplayID is the unique identifier for the display
	DisplayID string `json:"displayId"`
	// TenantID identifies the owning tenant
	TenantID string `json:"tenantId"`
	// Name is a human-readable identifier
	Name string `json:"name"`
	// LocalIP is the host's last advertised LAN address
	LocalIP *string `json:"localIp,omitempty"`
	// LocalPort is the host's last advertised local transport port
	LocalPort *int `json:"localPort,omitempty"`
	// LastSeenAt is the heartbeat liveness timestamp
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// IsOnline reports whether the display's heartbeat is within the online
// threshold at the given instant.
func (d *DisplayIdentity) IsOnline(now time.Time) bool {
	if d.LastSeenAt == nil {
		return false
	}
	return now.Sub(*d.LastSeenAt) < OnlineThreshold
}

// PresenceEventType defines roster change kinds on the tenant presence
// topic
type PresenceEventType string

const (
	// PresenceJoin indicates a display came online
	PresenceJoin PresenceEventType = "join"
	// PresenceLeave indicates a display went offline
	PresenceLeave PresenceEventType = "leave"
)

// PresenceEvent is one roster change on a tenant's presence topic
type PresenceEvent struct {
	// Type is join or leave
	Type PresenceEventType `json:"type"`
	// DisplayID identifies the display
	DisplayID string `json:"displayId"`
	// Name is the display's human-readable name
	Name string `json:"name,omitempty"`
	// OnlineAt records when the display connected
	OnlineAt time.Time `json:"onlineAt,omitempty"`
}
