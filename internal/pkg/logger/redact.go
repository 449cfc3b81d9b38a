package logger

import "strings"

// RedactVisitorID masks an opaque visitor identifier for safe logging.
// "v-8f3a2b91c4" → "v-8f***"
// Short IDs (≤4 chars) are fully masked.
func RedactVisitorID(id string) string {
	if len(id) <= 4 {
		return "***"
	}
	return id[:4] + "***"
}

// RedactIP masks the host portion of an IP address.
// "203.0.113.42" → "203.0.113.x", "2001:db8::1" → "2001:db8::x"
func RedactIP(ip string) string {
	if idx := strings.LastIndex(ip, "."); idx > 0 {
		return ip[:idx] + ".x"
	}
	if idx := strings.LastIndex(ip, ":"); idx > 0 {
		return ip[:idx] + ":x"
	}
	return "***"
}

func redactValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "visitor") {
		return RedactVisitorID(val)
	}
	if strings.Contains(key, "ip") || strings.Contains(key, "addr") {
		return RedactIP(val)
	}
	return val
}
