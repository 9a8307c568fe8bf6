package pkg

import (
	"fmt"
	"net/netip"
	"strings"
)

// ParsePrefix parses a CIDR prefix for validation. IPv6 prefixes may be
// written with the address bracketed, e.g. [2001:db8::]/32. A prefix with
// host bits set below the mask is rejected outright: it could never match a
// ROA exactly, so accepting it would only produce a misleading NOT FOUND.
func ParsePrefix(s string) (netip.Prefix, error) {
	text := s
	if strings.HasPrefix(text, "[") {
		end := strings.Index(text, "]")
		if end < 0 || !strings.HasPrefix(text[end+1:], "/") {
			return netip.Prefix{}, fmt.Errorf("invalid prefix %q", s)
		}
		text = text[1:end] + text[end+1:]
	}

	pfx, err := netip.ParsePrefix(text)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid prefix %q: %w", s, err)
	}
	if pfx != pfx.Masked() {
		return netip.Prefix{}, fmt.Errorf("invalid prefix %q: host bits set below /%d", s, pfx.Bits())
	}
	return pfx, nil
}
