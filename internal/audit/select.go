package audit

import (
	"net"
	"net/url"
	"strings"
)

// Placeholder fragments that show up when a sample config is deployed
// without being filled in.
var placeholderMarkers = []string{
	"your-",
	"changeme",
	"change-me",
	"example.com",
	"user:password@",
	"<",
}

// UsableDSN decides whether a configured connection string should route
// audit logging to the durable store. It rejects empty and placeholder
// values, and URL-style DSNs pointing at a loopback host so a hosted
// deployment cannot accidentally write to somebody's dev database. Plain
// file paths (sqlite) are accepted as-is. The returned reason is for the
// startup log when the answer is false.
func UsableDSN(dsn string) (bool, string) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return false, "no connection string configured"
	}

	lower := strings.ToLower(dsn)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return false, "connection string looks like a placeholder"
		}
	}

	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.Host != "" {
		if isLoopbackHost(u.Hostname()) {
			return false, "connection string points at a local database"
		}
	}

	return true, ""
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
