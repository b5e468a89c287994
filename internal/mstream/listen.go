package mstream

import (
	"context"
	"net"

	"github.com/hycast/hycast/internal/herrors"
)

// Listener accepts incoming connections and wraps each as a Socket.
type Listener struct {
	ln net.Listener
}

// Listen binds addr with SO_REUSEADDR/SO_REUSEPORT set, per the teacher's
// pkg/p2p/socket_unix.go and socket_windows.go.
func Listen(ctx context.Context, addr string) (*Listener, error) {
	cfg := net.ListenConfig{Control: setReuseAddr}
	ln, err := cfg.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, herrors.NewSystemError(err, "listen on %s", addr)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks for the next incoming connection and wraps it as a Socket.
func (l *Listener) Accept() (*Socket, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, herrors.NewSystemError(err, "accept connection")
	}
	return New(conn), nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Dial connects to addr and wraps the connection as a Socket.
func Dial(ctx context.Context, addr string) (*Socket, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, herrors.NewSystemError(err, "dial %s", addr)
	}
	return New(conn), nil
}
