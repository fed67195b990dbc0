package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protoICMP   = 1
	protoICMPv6 = 58
)

var icmpSeq atomic.Uint32

// ICMPPinger sends one ICMP echo request per Ping.
//
// By default it uses datagram ICMP sockets ("udp4"/"udp6"), which Linux
// allows for groups listed in net.ipv4.ping_group_range. Privileged uses raw
// sockets and needs CAP_NET_RAW.
type ICMPPinger struct {
	Privileged bool
	Resolver   *net.Resolver
}

func (p *ICMPPinger) Ping(ctx context.Context, host string, timeout time.Duration) (time.Duration, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ip, err := resolveIP(ctx, p.Resolver, host)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", host, err)
	}

	v4 := ip.To4() != nil
	network, laddr := "udp4", "0.0.0.0"
	var reqType, replyType icmp.Type = ipv4.ICMPTypeEcho, ipv4.ICMPTypeEchoReply
	proto := protoICMP
	if !v4 {
		network, laddr = "udp6", "::"
		reqType, replyType = ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply
		proto = protoICMPv6
	}
	if p.Privileged {
		network = "ip4:icmp"
		if !v4 {
			network = "ip6:ipv6-icmp"
		}
	}

	conn, err := icmp.ListenPacket(network, laddr)
	if err != nil {
		return 0, fmt.Errorf("icmp listen %s: %w", network, err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	// Unblock ReadFrom when the caller cancels before the deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	id := os.Getpid() & 0xffff
	seq := int(icmpSeq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: reqType,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte("subprobe")},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("icmp marshal: %w", err)
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if !p.Privileged {
		dst = &net.UDPAddr{IP: ip}
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, dst); err != nil {
		return 0, fmt.Errorf("icmp write: %w", err)
	}

	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			return 0, fmt.Errorf("icmp read: %w", err)
		}
		rtt := time.Since(start)

		if pip := addrIP(peer); pip != nil && !pip.Equal(ip) {
			continue
		}
		rm, err := icmp.ParseMessage(proto, rb[:n])
		if err != nil || rm.Type != replyType {
			continue
		}
		echo, ok := rm.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// Datagram sockets get their ID rewritten by the kernel.
		if p.Privileged && echo.ID != id {
			continue
		}
		return rtt, nil
	}
}

func addrIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.IP
	case *net.IPAddr:
		return v.IP
	default:
		return nil
	}
}
