// Package netutil binds listening sockets with explicit socket options.
package netutil

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/vnykmshr/goloop/pkg/common/validation"
)

// SocketOption is a raw setsockopt(level, name, value) applied before bind.
type SocketOption struct {
	Level int
	Name  int
	Value int
}

// BindConfig describes the socket to bind.
type BindConfig struct {
	// Address is the host to bind. An address containing ':' selects IPv6.
	Address string

	// Port to bind; 0 picks a free port.
	Port int

	// Options are applied after the reuse flags, in order.
	Options []SocketOption

	// ReuseAddr sets SO_REUSEADDR.
	ReuseAddr bool

	// ReusePort sets SO_REUSEPORT.
	ReusePort bool

	// Proto names the scheme in the log line. Defaults to "tcp".
	Proto string

	// Logger receives the "Listening" line. If nil, logging is discarded.
	Logger *slog.Logger
}

// DefaultBindConfig returns a config for address:port with SO_REUSEADDR set.
func DefaultBindConfig(address string, port int) BindConfig {
	return BindConfig{
		Address:   address,
		Port:      port,
		ReuseAddr: true,
		Proto:     "tcp",
	}
}

// BindSocket binds and listens on a TCP socket described by config.
func BindSocket(ctx context.Context, config BindConfig) (net.Listener, error) {
	network, addr, err := prepare(&config)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{Control: control(config)}
	ln, err := lc.Listen(ctx, "tcp"+network, addr)
	if err != nil {
		return nil, err
	}

	logListening(config, ln.Addr())
	return ln, nil
}

// BindPacket binds a UDP socket described by config.
func BindPacket(ctx context.Context, config BindConfig) (net.PacketConn, error) {
	if config.Proto == "" {
		config.Proto = "udp"
	}
	network, addr, err := prepare(&config)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{Control: control(config)}
	conn, err := lc.ListenPacket(ctx, "udp"+network, addr)
	if err != nil {
		return nil, err
	}

	logListening(config, conn.LocalAddr())
	return conn, nil
}

// prepare validates config, fills defaults and returns the address family
// suffix ("4" or "6") with the host:port to bind.
func prepare(config *BindConfig) (string, string, error) {
	if err := validation.ValidateNotEmpty("netutil", "Address", config.Address); err != nil {
		return "", "", err
	}
	if err := validation.ValidateNonNegative("netutil", "Port", config.Port); err != nil {
		return "", "", err
	}
	if config.Proto == "" {
		config.Proto = "tcp"
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	family := "4"
	if strings.Contains(config.Address, ":") {
		family = "6"
	}
	return family, net.JoinHostPort(config.Address, strconv.Itoa(config.Port)), nil
}

func logListening(config BindConfig, addr net.Addr) {
	host, port := addr.String(), ""
	if h, p, err := net.SplitHostPort(addr.String()); err == nil {
		host, port = h, p
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	config.Logger.Info("Listening " + config.Proto + "://" + host + ":" + port)
}
