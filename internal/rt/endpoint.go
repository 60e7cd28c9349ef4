package rt

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// blockedNetworks are address ranges an RT endpoint must never resolve into:
// RFC1918 private space, loopback, link-local, and their IPv6 equivalents.
var blockedNetworks = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),     // Private Class A
	netip.MustParsePrefix("172.16.0.0/12"),  // Private Class B
	netip.MustParsePrefix("192.168.0.0/16"), // Private Class C
	netip.MustParsePrefix("127.0.0.0/8"),    // Loopback
	netip.MustParsePrefix("169.254.0.0/16"), // Link-local
	netip.MustParsePrefix("::1/128"),        // IPv6 loopback
	netip.MustParsePrefix("fc00::/7"),       // IPv6 unique-local
	netip.MustParsePrefix("fe80::/10"),      // IPv6 link-local
}

// blockedHostnames are loopback and cloud-metadata hostnames rejected by
// exact match after case folding.
var blockedHostnames = []string{
	"localhost",
	"localhost.localdomain",
	"metadata.google.internal", // GCP metadata
	"metadata.internal",        // Generic cloud metadata
}

// blockedHostSuffixes reject internal and mDNS domains by suffix match.
var blockedHostSuffixes = []string{
	".internal",
	".local",
}

// metadataIP is the cloud metadata service address shared by AWS, Azure and
// GCP. Matched literally in addition to the link-local range check so it is
// rejected even if the range list changes.
const metadataIP = "169.254.169.254"

// ValidateEndpoint validates a candidate RT base URL against the scheme and
// address-space policy and returns it unchanged when acceptable.
//
// allowHTTP permits plaintext http:// transport and exists for test
// environments only; in all cases the scheme must be http or https.
//
// The checks run in order, each a distinct failure cause: parseability,
// scheme, host presence, hostname denylist, hostname pattern denylist and,
// for literal IP hosts, the blocked-network ranges. A host that is not a
// literal IP skips the range check: DNS resolution to a blocked address is
// not detected here and remains a documented residual risk.
//
// Must be called before any network client touching the URL is constructed,
// at initial configuration and whenever configuration changes.
func ValidateEndpoint(rawURL string, allowHTTP bool) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("%w: URL cannot be empty", ErrInvalidEndpoint)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URL format: %w", ErrInvalidEndpoint, err)
	}

	// Scheme policy
	if !allowHTTP && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: only HTTPS URLs are allowed", ErrInvalidEndpoint)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: invalid URL scheme %q", ErrInvalidEndpoint, parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: URL must include a hostname", ErrInvalidEndpoint)
	}

	hostLower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if hostLower == blocked {
			return "", fmt.Errorf("%w: blocked hostname %q", ErrInvalidEndpoint, host)
		}
	}

	if hostLower == metadataIP {
		return "", fmt.Errorf("%w: blocked hostname %q", ErrInvalidEndpoint, host)
	}
	for _, suffix := range blockedHostSuffixes {
		if strings.HasSuffix(hostLower, suffix) {
			return "", fmt.Errorf("%w: blocked hostname pattern %q", ErrInvalidEndpoint, host)
		}
	}

	// Literal IP hosts are checked against the blocked ranges. Anything that
	// fails to parse is a hostname and passes (see residual risk above).
	if addr, parseErr := netip.ParseAddr(hostLower); parseErr == nil {
		addr = addr.Unmap()
		for _, network := range blockedNetworks {
			if network.Contains(addr) {
				return "", fmt.Errorf("%w: blocked IP range %q", ErrInvalidEndpoint, host)
			}
		}
	}

	return rawURL, nil
}
