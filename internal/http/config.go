package http

import (
	"fmt"
	"net"
	"strings"
)

// DefaultListen is the listen address when none is configured.
const DefaultListen = ":8501"

// Config holds configuration for the HTTP server.
type Config struct {
	Listen     string            `json:"listen" toml:"listen" yaml:"listen"`                            // Address to listen on (e.g., ":8501", "127.0.0.1:8501")
	Users      map[string]string `json:"users,omitempty" toml:"users,omitempty" yaml:"users,omitempty"` // username -> argon2id hash; empty = no auth
	TrustProxy bool              `json:"trustProxy,omitempty" toml:"trustProxy" yaml:"trustProxy"`      // Take the client IP from X-Forwarded-For / X-Real-IP
	DevMode    bool              `json:"devMode,omitempty" toml:"devMode" yaml:"devMode"`               // Reload templates from disk on each request
}

// ValidateListen checks the format of a listen address without binding it.
func ValidateListen(listen string) error {
	if listen == "" {
		listen = DefaultListen
	}

	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	if host != "" && host != "localhost" {
		if ip := net.ParseIP(host); ip == nil {
			return fmt.Errorf("invalid host: %s (must be IP address or localhost)", host)
		}
	}

	if port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

// normalizeAddr normalizes an address for display (handles "" vs "0.0.0.0")
func normalizeAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return host + ":" + port
}
