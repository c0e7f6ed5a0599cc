// Package client implements the controller side of the display control
// protocol: the direct LAN transport, the cloud relay transport, and
// the connection manager that aggregates them per display.
package client

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	werrors "github.com/versewall/versewall/internal/errors"
	"github.com/versewall/versewall/internal/protocol"
)

// localTransport is one authenticated LAN stream to a display host
type localTransport struct {
	conn      net.Conn
	displayID string
	logger    *slog.Logger

	onState func(*v1alpha1.HostState)
	onPong  func()

	splitter  protocol.Splitter
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// dialLocal connects to a host and completes the LOCAL_AUTH handshake.
// The handshake is bounded by timeout; a host that never answers does
// not hang the controller.
func dialLocal(addr string, auth v1alpha1.LocalAuth, timeout time.Duration, onState func(*v1alpha1.HostState), onPong func(), logger *slog.Logger) (*localTransport, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("error dialing %s: %w", addr, err)
	}

	t := &localTransport{
		conn:      conn,
		displayID: auth.DisplayID,
		logger:    logger,
		onState:   onState,
		onPong:    onPong,
		closed:    make(chan struct{}),
	}

	if err := t.handshake(auth, timeout); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go t.readLoop()
	return t, nil
}

// handshake sends LOCAL_AUTH and waits for the host's verdict. Anything
// the host sends before the verdict that is not a LOCAL_AUTH_RESULT is
// buffered state, delivered after success.
func (t *localTransport) handshake(auth v1alpha1.LocalAuth, timeout time.Duration) error {
	if err := t.send(&v1alpha1.ProtocolMessage{
		Type:      v1alpha1.ProtocolMessageLocalAuth,
		Auth:      &auth,
		Timestamp: time.Now(),
	}); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	var pending []*v1alpha1.HostState
	buf := make([]byte, 4096)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			return fmt.Errorf("handshake read failed: %w", err)
		}

		for _, record := range t.splitter.Feed(buf[:n]) {
			msg, err := protocol.Decode(record)
			if err != nil {
				t.logger.Info("dropping unparseable handshake record", "error", err)
				continue
			}

			switch msg.Type {
			case v1alpha1.ProtocolMessageLocalAuthResult:
				if msg.AuthResult == nil || !msg.AuthResult.Success {
					if msg.AuthResult != nil && msg.AuthResult.Error == v1alpha1.AuthErrorDisplayMismatch {
						return werrors.ErrDisplayMismatch
					}
					return fmt.Errorf("local handshake rejected")
				}
				if err := t.conn.SetReadDeadline(time.Time{}); err != nil {
					return err
				}
				for _, state := range pending {
					t.onState(state)
				}
				return nil
			case v1alpha1.ProtocolMessageStateSync:
				if msg.State != nil {
					pending = append(pending, msg.State)
				}
			}
		}
	}
}

func (t *localTransport) readLoop() {
	defer t.Close()

	buf := make([]byte, 4096)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			select {
			case <-t.closed:
			default:
				t.logger.Info("local transport closed", "displayId", t.displayID, "error", err)
			}
			return
		}

		for _, record := range t.splitter.Feed(buf[:n]) {
			msg, err := protocol.Decode(record)
			if err != nil {
				t.logger.Info("dropping unparseable record", "error", err)
				continue
			}

			switch msg.Type {
			case v1alpha1.ProtocolMessageStateSync:
				if msg.State != nil {
					t.onState(msg.State)
				}
			case v1alpha1.ProtocolMessagePong:
				if t.onPong != nil {
					t.onPong()
				}
			}
		}
	}
}

// send writes one wire record
func (t *localTransport) send(msg *v1alpha1.ProtocolMessage) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	if _, err := t.conn.Write(data); err != nil {
		return fmt.Errorf("%w: %v", werrors.ErrTransportClosed, err)
	}
	return nil
}

// SendCommand delivers one command over the LAN stream
func (t *localTransport) SendCommand(cmd *v1alpha1.ClientCommand) error {
	return t.send(&v1alpha1.ProtocolMessage{
		Type:      v1alpha1.ProtocolMessageCommand,
		Command:   cmd,
		Timestamp: time.Now(),
	})
}

// Ping sends a liveness probe; the answer arrives via onPong
func (t *localTransport) Ping() error {
	return t.send(&v1alpha1.ProtocolMessage{
		Type:      v1alpha1.ProtocolMessagePing,
		Timestamp: time.Now(),
	})
}

// Alive reports whether the stream is still open
func (t *localTransport) Alive() bool {
	select {
	case <-t.closed:
		return false
	default:
		return true
	}
}

// Close tears the stream down; safe to call more than once
func (t *localTransport) Close() {
	t.closeOnce.Do(func() {
		close(t.closed)
		_ = t.conn.Close()
	})
}
