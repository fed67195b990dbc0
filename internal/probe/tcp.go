package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const DefaultTCPPort = 443

var errPortRange = errors.New("port out of range")

// TCPPinger measures TCP connect time to host:Port. DNS resolution happens
// before the clock starts.
type TCPPinger struct {
	Port     int
	Resolver *net.Resolver
}

func (p *TCPPinger) Ping(ctx context.Context, host string, timeout time.Duration) (time.Duration, error) {
	port := p.Port
	if port == 0 {
		port = DefaultTCPPort
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("tcp port %d: %w", port, errPortRange)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ip, err := resolveIP(ctx, p.Resolver, host)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", host, err)
	}

	var d net.Dialer
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(port)))
	if err != nil {
		return 0, err
	}
	rtt := time.Since(start)
	_ = conn.Close()
	return rtt, nil
}
