package crawler

import (
	"context"
	"net/netip"
	"net/url"
	"strings"
)

// reservedPrefixes are ranges netip has no predicate for but that must never
// be crawled directly.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("100::/64"),
	netip.MustParsePrefix("2001:db8::/32"),
}

// guardHost rejects loopback, private, and reserved targets. Literal IPs are
// checked directly; names are resolved and every address is checked. A
// failed lookup is not an error here: the fetch pipeline will surface it.
func guardHost(ctx context.Context, host string, resolver Resolver) error {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if isLocalhostName(host) {
		return &SecurityError{Target: host, Reason: "localhost targets are not allowed"}
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if disallowedAddr(addr) {
			return &SecurityError{Target: host, Reason: "private or reserved address"}
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, dnsCheckTimeout)
	defer cancel()
	addrs, err := resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		if disallowedAddr(addr) {
			return &SecurityError{Target: host, Reason: "resolves to private or reserved address " + addr.String()}
		}
	}
	return nil
}

// CheckRedirectTarget applies the private-address rules to a redirect
// location. Only localhost names and IP literals are checked; names are not
// resolved.
func CheckRedirectTarget(u *url.URL) error {
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if isLocalhostName(host) {
		return &SecurityError{Target: u.String(), Reason: "redirect to localhost"}
	}
	if addr, err := netip.ParseAddr(host); err == nil && disallowedAddr(addr) {
		return &SecurityError{Target: u.String(), Reason: "redirect to private or reserved address"}
	}
	return nil
}

func isLocalhostName(host string) bool {
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || host == "localhost.localdomain"
}

func disallowedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() {
		return true
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
