// Package server normalizes and validates HTTP origins for WebSocket and CORS
// requests to enforce configured access control.
package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// OriginPolicy decides which browser origins may open connections.
type OriginPolicy struct {
	allowed      map[string]struct{}
	allowAll     bool
	localNetwork bool
	logger       zerolog.Logger
}

// NewOriginPolicy builds the policy from the configured origins.
func NewOriginPolicy(cfg *Config, logger zerolog.Logger) *OriginPolicy {
	p := &OriginPolicy{
		allowed:      make(map[string]struct{}),
		localNetwork: cfg.AllowLocalNetwork,
		logger:       logger,
	}

	normalized, allowAll := normalizeOrigins(cfg.AllowedOrigins, logger)
	p.allowAll = allowAll
	for _, origin := range normalized {
		p.allowed[origin] = struct{}{}
	}
	return p
}

func normalizeOrigins(origins []string, logger zerolog.Logger) ([]string, bool) {
	if len(origins) == 0 {
		return nil, false
	}

	normalized := make([]string, 0, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			allowAll = true
			continue
		}

		normalizedOrigin, ok := normalizeOrigin(trimmed)
		if !ok {
			logger.Warn().Str("origin", origin).Msg("ignoring invalid origin in configuration")
			continue
		}

		normalized = append(normalized, normalizedOrigin)
	}

	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	normalized := strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
	return normalized, true
}

// Allowed reports whether origin may connect. An empty origin comes from a
// non-browser client and is allowed.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" || p.allowAll {
		return true
	}

	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}

	if _, exists := p.allowed[normalized]; exists {
		return true
	}

	return p.localNetwork && isLocalNetworkOrigin(normalized)
}

// CheckOrigin is the gorilla/websocket upgrader hook.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if p.Allowed(origin) {
		return true
	}

	p.logger.Warn().Str("origin", origin).Msg("blocked WebSocket connection from disallowed origin")
	return false
}

// isLocalNetworkOrigin matches localhost, loopback and private IPv4/IPv6 hosts.
func isLocalNetworkOrigin(origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Hostname()
	if host == "localhost" {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
