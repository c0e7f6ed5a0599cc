// Package http exposes the host's operational endpoints: health checks
// and a read-only status view of the display session and transports.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/versed/session"
)

// RelayStatus reports cloud relay connectivity
type RelayStatus interface {
	Connected() bool
}

// LocalStatus reports the LAN listener
type LocalStatus interface {
	Addr() string
	ClientCount() int
}

// Handler serves the host's operational HTTP surface
type Handler struct {
	session *session.Session
	relay   RelayStatus
	local   LocalStatus
	logger  *slog.Logger
}

// NewHandler creates an ops handler
func NewHandler(sess *session.Session, relay RelayStatus, local LocalStatus, logger *slog.Logger) *Handler {
	return &Handler{
		session: sess,
		relay:   relay,
		local:   local,
		logger:  logger,
	}
}

// statusResponse is the /status payload
type statusResponse struct {
	Phase          string              `json:"phase"`
	DisplayID      string              `json:"displayId,omitempty"`
	TenantID       string              `json:"tenantId,omitempty"`
	LocalAddr      string              `json:"localAddr,omitempty"`
	LocalClients   int                 `json:"localClients"`
	RelayConnected bool                `json:"relayConnected"`
	State          *v1alpha1.HostState `json:"state,omitempty"`
	Time           time.Time           `json:"time"`
}

// GetStatus returns the session phase, transports, and current state
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Phase: string(h.session.Phase()),
		Time:  time.Now(),
	}

	if identity := h.session.Identity(); identity != nil {
		resp.DisplayID = identity.DisplayID
		resp.TenantID = identity.TenantID
		resp.State = h.session.Snapshot()
	}
	if h.local != nil {
		resp.LocalAddr = h.local.Addr()
		resp.LocalClients = h.local.ClientCount()
	}
	if h.relay != nil {
		resp.RelayConnected = h.relay.Connected()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("error encoding status response", "error", err)
	}
}
