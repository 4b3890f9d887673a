// Package safety implements the URL validation policy that stands between
// the agent and any outbound navigation or fetch: protocol/host allowlists,
// private-IP and loopback rejection, and DNS-rebinding protection.
package safety

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Policy carries the runtime allow/block domain lists for a single
// validation call. Both are evaluated against the hostname with exact and
// `*.suffix` matching.
type Policy struct {
	Allow []string
	Block []string
}

// ValidationError is returned for any policy violation. It never escapes
// with a partially-validated URL.
type ValidationError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("safety: %s for %q: %v", e.Reason, e.Raw, e.Err)
	}
	return fmt.Sprintf("safety: %s for %q", e.Reason, e.Raw)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func fail(raw, reason string, err error) (string, error) {
	return "", &ValidationError{Reason: reason, Raw: raw, Err: err}
}

// Resolver abstracts DNS resolution so tests can substitute a fake without
// touching the network. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

var privateNets = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"192.168.0.0/16",
	"172.16.0.0/12",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("safety: invalid CIDR literal %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// isPrivateIP reports whether ip falls in a private/loopback/link-local
// range, including the IPv4-mapped IPv6 form of those ranges (handled by
// To4() normalization before the CIDR check).
func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		for _, n := range privateNets {
			if n.IP.To4() != nil && n.Contains(v4) {
				return true
			}
		}
		return false
	}
	for _, n := range privateNets {
		if n.IP.To4() == nil && n.Contains(ip) {
			return true
		}
	}
	return false
}

func hostMatches(host string, patterns []string) bool {
	host = strings.ToLower(host)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "*.") {
			suffix := p[1:] // ".entry"
			if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
				return true
			}
			continue
		}
		if host == p {
			return true
		}
	}
	return false
}

// Validate runs the full C1 policy against raw and, on success, returns the
// URL's canonical string form. It never returns a partially-validated URL.
func Validate(ctx context.Context, raw string, p Policy, resolver Resolver) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fail(raw, "unparseable URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fail(raw, "protocol must be http or https", nil)
	}
	host := u.Hostname()
	if host == "" {
		return fail(raw, "missing hostname", nil)
	}
	lowerHost := strings.ToLower(host)
	if lowerHost == "localhost" || lowerHost == "[::1]" || lowerHost == "::1" {
		return fail(raw, "loopback hostname is not allowed", nil)
	}

	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		if isPrivateIP(ip) {
			return fail(raw, "hostname is a private/loopback IP literal", nil)
		}
	}

	if len(p.Allow) > 0 && !hostMatches(lowerHost, p.Allow) {
		return fail(raw, "hostname is not in the allow list", nil)
	}
	if len(p.Block) > 0 && hostMatches(lowerHost, p.Block) {
		return fail(raw, "hostname is in the block list", nil)
	}

	if resolver == nil {
		resolver = net.DefaultResolver
	}
	// Rebinding protection: resolve the hostname now and reject if any
	// address is private. DNS failure itself is fatal — fail closed rather
	// than navigate to an unresolved name.
	if net.ParseIP(host) == nil {
		addrs, err := resolver.LookupIPAddr(ctx, host)
		if err != nil {
			return fail(raw, "DNS resolution failed", err)
		}
		if len(addrs) == 0 {
			return fail(raw, "DNS resolution returned no addresses", nil)
		}
		for _, a := range addrs {
			if isPrivateIP(a.IP) {
				return fail(raw, "hostname resolves to a private IP (rebinding protection)", nil)
			}
		}
	}

	return u.String(), nil
}
