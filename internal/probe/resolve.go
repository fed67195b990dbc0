package probe

import (
	"context"
	"errors"
	"net"
	"strings"

	"golang.org/x/net/idna"
)

var errNoAddress = errors.New("host resolved to no address")

// asciiHost converts internationalized names to their punycode form. Hosts
// idna rejects are passed on unchanged and left to the resolver.
func asciiHost(host string) string {
	host = strings.TrimSuffix(strings.Trim(strings.TrimSpace(host), "[]"), ".")
	if net.ParseIP(host) != nil {
		return host
	}
	if a, err := idna.Lookup.ToASCII(host); err == nil && a != "" {
		return a
	}
	return host
}

// resolveIP returns an address for host, preferring IPv4.
func resolveIP(ctx context.Context, r *net.Resolver, host string) (net.IP, error) {
	host = asciiHost(host)
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	var v6 net.IP
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
		if v6 == nil {
			v6 = a.IP
		}
	}
	if v6 == nil {
		return nil, errNoAddress
	}
	return v6, nil
}
