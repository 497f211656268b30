package utility

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies lists the peers whose forwarding headers are believed
type TrustedProxies []*net.IPNet

// ParseTrustedProxies accepts plain addresses and CIDR ranges
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid proxy address %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			proxies = append(proxies, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy range %q: %w", entry, err)
		}
		proxies = append(proxies, network)
	}
	return proxies, nil
}

func (p TrustedProxies) Contains(ip net.IP) bool {
	for _, network := range p {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the connection peer, or the address a trusted proxy forwarded
// for it. X-Forwarded-For is read right to left and the first hop that is not a
// trusted proxy wins. fallback is used only when no valid address is known.
func ClientIP(r *http.Request, trusted TrustedProxies, fallback string) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil {
		return fallback
	}
	if !trusted.Contains(peer) {
		return peer.String()
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		var leftmost net.IP
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				continue
			}
			if !trusted.Contains(ip) {
				return ip.String()
			}
			leftmost = ip
		}
		if leftmost != nil {
			return leftmost.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-Ip"))); ip != nil {
		return ip.String()
	}
	return peer.String()
}
