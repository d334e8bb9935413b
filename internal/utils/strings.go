// Package utils provides common utility functions.
package utils

import (
	"net"
	"strings"
)

// MaskKey masks an API key for safe logging (shows first 8 and last 4 chars).
// Use this anywhere a credential could end up in a log line.
func MaskKey(key string) string {
	if key == "" {
		return "(empty)"
	}
	if len(key) < 16 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}

// ClientIP extracts the client identity from proxy headers, falling back to
// the raw remote address. The result is only a rate-limit partition key; a
// spoofed header spends the spoofer's own budget, nothing more.
func ClientIP(forwardedFor, realIP, remoteAddr string) string {
	if realIP != "" {
		return strings.TrimSpace(realIP)
	}
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
