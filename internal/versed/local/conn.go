package local

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/protocol"
)

const (
	readBufferSize = 4096
	sendQueueSize  = 16
)

// conn is one controller connection on the host side
type conn struct {
	server *Server
	raw    net.Conn
	logger *slog.Logger

	splitter protocol.Splitter

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu            sync.Mutex
	authenticated bool
}

// close tears the connection down once; the read and write loops both
// observe it through done
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.raw.Close()
	})
}

func (c *conn) isAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

func (c *conn) setAuthenticated() (first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	first = !c.authenticated
	c.authenticated = true
	return first
}

// readLoop consumes the stream until the peer disconnects or the server
// stops. Unparseable records are logged and dropped; they do not close
// the connection or corrupt subsequent framing.
func (c *conn) readLoop() {
	defer func() {
		c.close()
		c.server.removeConn(c)
		c.logger.Info("connection closed")
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.raw.Read(buf)
		if err != nil {
			return
		}

		for _, record := range c.splitter.Feed(buf[:n]) {
			msg, err := protocol.Decode(record)
			if err != nil {
				c.logger.Error("dropping unparseable record", "error", err)
				continue
			}
			c.dispatch(msg)
		}
	}
}

func (c *conn) dispatch(msg *v1alpha1.ProtocolMessage) {
	if msg.Type == v1alpha1.ProtocolMessageLocalAuth {
		c.handleAuth(msg.Auth)
		return
	}

	// Anything else from an unauthenticated peer is dropped without a
	// reply, so probes learn nothing.
	if !c.isAuthenticated() {
		return
	}

	switch msg.Type {
	case v1alpha1.ProtocolMessageCommand:
		if msg.Command == nil {
			c.logger.Error("dropping command message without command")
			return
		}
		c.server.handler.ApplyCommand(msg.Command)

	case v1alpha1.ProtocolMessagePing:
		// Liveness probe, independent of application state
		c.writeMessage(&v1alpha1.ProtocolMessage{
			Type:      v1alpha1.ProtocolMessagePong,
			Timestamp: time.Now(),
		})

	case v1alpha1.ProtocolMessagePong, v1alpha1.ProtocolMessageStateSync,
		v1alpha1.ProtocolMessageLocalAuthResult:
		// Host never consumes these

	default:
		c.logger.Error("dropping message of unknown type", "type", string(msg.Type))
	}
}

func (c *conn) handleAuth(auth *v1alpha1.LocalAuth) {
	if auth == nil {
		return
	}
	if !c.server.allowAuthAttempt(c.raw.RemoteAddr().String()) {
		// Rate-limited peers get the same silence as unauthenticated
		// traffic.
		return
	}

	tenant, err := protocol.TenantClaim(auth.Token)
	if err != nil {
		c.logger.Error("handshake token rejected", "error", err)
		c.writeAuthResult(false, v1alpha1.AuthErrorDisplayMismatch)
		return
	}

	if auth.DisplayID != c.server.cfg.DisplayID || tenant != c.server.cfg.TenantID {
		c.logger.Info("handshake display mismatch",
			"claimedDisplayId", auth.DisplayID,
			"claimedTenant", tenant,
		)
		// Connection stays open but unauthenticated; the caller may
		// retry.
		c.writeAuthResult(false, v1alpha1.AuthErrorDisplayMismatch)
		return
	}

	if c.setAuthenticated() {
		c.server.handler.ClientConnected()
		c.logger.Info("controller authenticated", "displayId", auth.DisplayID)
	}
	c.writeAuthResult(true, "")

	// Newly authenticated controllers immediately learn the current
	// state.
	c.writeMessage(&v1alpha1.ProtocolMessage{
		Type:      v1alpha1.ProtocolMessageStateSync,
		State:     c.server.handler.Snapshot(),
		Timestamp: time.Now(),
	})
}

func (c *conn) writeAuthResult(success bool, errCode string) {
	c.writeMessage(&v1alpha1.ProtocolMessage{
		Type: v1alpha1.ProtocolMessageLocalAuthResult,
		AuthResult: &v1alpha1.LocalAuthResult{
			Success: success,
			Error:   errCode,
		},
		Timestamp: time.Now(),
	})
}

func (c *conn) writeMessage(msg *v1alpha1.ProtocolMessage) {
	data, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Error("error encoding message", "error", err)
		return
	}
	if err := c.enqueue(data); err != nil {
		c.logger.Error("write queue error", "error", err)
	}
}

// enqueue hands data to the write pump. A peer whose queue is full is
// not draining its socket; it gets dropped so broadcasts to everyone
// else keep flowing.
func (c *conn) enqueue(data []byte) error {
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return net.ErrClosed
	default:
		c.close()
		return fmt.Errorf("send queue full, dropping connection")
	}
}

// writePump is the single writer on the socket, draining the queue in
// order
func (c *conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.writeRaw(data); err != nil {
				c.logger.Error("write error", "error", err)
				c.close()
				return
			}
		}
	}
}

func (c *conn) writeRaw(data []byte) error {
	if err := c.raw.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := c.raw.Write(data)
	return err
}
