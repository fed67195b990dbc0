package normalize

import (
	"sort"
	"strings"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

type prefixEntry struct {
	Prefix   string
	Protocol model.Protocol
}

// prefixTable maps scheme prefixes to protocol tags. It is sorted
// longest-prefix-first in init, so "hysteria2://" wins over "hysteria://"
// and "https://" is never shadowed by "http://".
var prefixTable = []prefixEntry{
	{"vless://", model.ProtocolVless},
	{"vmess://", model.ProtocolVmess},
	{"trojan://", model.ProtocolTrojan},
	{"ss://", model.ProtocolShadowsocks},
	{"ssss://", model.ProtocolShadowsocks},
	{"hysteria://", model.ProtocolHysteria},
	{"hysteria2://", model.ProtocolHysteria2},
	{"hy2://", model.ProtocolHysteria2},
	{"tuic://", model.ProtocolTUIC},
	{"socks://", model.ProtocolSocks},
	{"socks5://", model.ProtocolSocks},
	{"http://", model.ProtocolHTTP},
	{"https://", model.ProtocolHTTP},
}

func init() {
	sort.SliceStable(prefixTable, func(i, j int) bool {
		return len(prefixTable[i].Prefix) > len(prefixTable[j].Prefix)
	})
}

// DetectProtocol returns the protocol tag of line by scheme prefix. The
// scheme is matched case-insensitively; no match yields ProtocolUnknown.
func DetectProtocol(line string) model.Protocol {
	p, _ := matchPrefix(line)
	return p
}

// matchPrefix also returns the matched prefix length so callers can split
// scheme and payload without re-scanning.
func matchPrefix(line string) (model.Protocol, int) {
	for _, e := range prefixTable {
		if len(line) >= len(e.Prefix) && strings.EqualFold(line[:len(e.Prefix)], e.Prefix) {
			return e.Protocol, len(e.Prefix)
		}
	}
	return model.ProtocolUnknown, 0
}
