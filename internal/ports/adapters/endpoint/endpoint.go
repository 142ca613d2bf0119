// Package endpoint validates user-supplied API base URLs before any
// credential is sent to them.
package endpoint

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Policy names the setting being checked and the hosts it may point at.
// AllowedHosts replaces DefaultHosts when non-empty.
type Policy struct {
	Setting      string
	DefaultHosts []string
	AllowedHosts []string
}

// Normalize trims whitespace and trailing slashes, substituting fallback for
// an empty value.
func Normalize(baseURL, fallback string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = fallback
	}
	return strings.TrimRight(baseURL, "/")
}

// Validate requires an absolute https URL on an allowed host. Plain http is
// accepted only for loopback hosts.
func (p Policy) Validate(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", p.Setting, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid %s %q: absolute URL with host is required", p.Setting, baseURL)
	}
	if u.User != nil {
		return fmt.Errorf("invalid %s %q: userinfo is not allowed", p.Setting, baseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid %s %q: query and fragment are not allowed", p.Setting, baseURL)
	}

	host := strings.ToLower(u.Hostname())
	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if !isLoopback(host) {
			return fmt.Errorf("invalid %s %q: https is required", p.Setting, baseURL)
		}
	default:
		return fmt.Errorf("invalid %s %q: https is required", p.Setting, baseURL)
	}

	if _, ok := p.hosts()[host]; !ok {
		return fmt.Errorf("invalid %s %q: host %q is not allowed", p.Setting, baseURL, host)
	}
	return nil
}

func (p Policy) hosts() map[string]struct{} {
	if out := hostSet(p.AllowedHosts); len(out) > 0 {
		return out
	}
	return hostSet(p.DefaultHosts)
}

func hostSet(hosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimPrefix(v, "https://")
		v = strings.Trim(v, "/")
		if v == "" {
			continue
		}
		if i := strings.Index(v, ":"); i >= 0 {
			v = v[:i]
		}
		out[v] = struct{}{}
	}
	return out
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
