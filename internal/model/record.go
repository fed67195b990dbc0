package model

import "strings"

// Protocol is the closed set of proxy schemes a record can be tagged with.
type Protocol string

const (
	ProtocolVless       Protocol = "vless"
	ProtocolVmess       Protocol = "vmess"
	ProtocolTrojan      Protocol = "trojan"
	ProtocolShadowsocks Protocol = "shadowsocks"
	ProtocolHysteria    Protocol = "hysteria"
	ProtocolHysteria2   Protocol = "hysteria2"
	ProtocolTUIC        Protocol = "tuic"
	ProtocolSocks       Protocol = "socks"
	ProtocolHTTP        Protocol = "http"
	ProtocolUnknown     Protocol = "unknown"
)

// Protocols lists every routable protocol in a stable order. Unknown is not
// routable and is never part of it.
var Protocols = []Protocol{
	ProtocolVless,
	ProtocolVmess,
	ProtocolTrojan,
	ProtocolShadowsocks,
	ProtocolHysteria,
	ProtocolHysteria2,
	ProtocolTUIC,
	ProtocolSocks,
	ProtocolHTTP,
}

// ParseProtocol maps a protocol name back to its tag. Unrecognized names
// return ProtocolUnknown.
func ParseProtocol(s string) Protocol {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range Protocols {
		if string(p) == s {
			return p
		}
	}
	return ProtocolUnknown
}

// ConfigRecord is one normalized proxy configuration line.
//
// Canonical is the deduplication key and the form written to artifacts.
// Original keeps the line as it was found in the subscription.
type ConfigRecord struct {
	Protocol  Protocol
	Canonical string
	Original  string
}

// HostTarget is the probe target derived from a record. Host is an opaque
// token (hostname, IPv4 or IPv6 without brackets); it is not validated.
type HostTarget struct {
	Host string
}
