package observability

import (
	"net/http"
	"strings"
	"unicode"
)

var sensitiveHeaders = map[string]struct{}{
	"Authorization":    {},
	"Cookie":           {},
	"Stripe-Signature": {},
	"X-Api-Key":        {},
}

const defaultStringLimit = 256

// sanitizeString drops control characters and truncates to limit runes to keep log lines intact.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}
	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		cleaned = append(cleaned, r)
		if len(cleaned) == limit {
			break
		}
	}
	return string(cleaned)
}

// SanitizeRoute cleans a route pattern or path for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod cleans an HTTP method for logging.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeUserID bounds identifiers written to logs.
func SanitizeUserID(uid string) string {
	return sanitizeString(uid, 64)
}

// MaskEmail keeps the first character of the local part and the domain: j***@example.com.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		if email == "" {
			return ""
		}
		return "***"
	}
	return sanitizeString(string([]rune(local)[:1])+"***@"+domain, 128)
}

// SanitizeHeaders flattens headers for logging and redacts credentials and signatures.
func SanitizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		key = http.CanonicalHeaderKey(key)
		if _, ok := sensitiveHeaders[key]; ok {
			out[key] = "[redacted]"
			continue
		}
		out[key] = sanitizeString(strings.Join(values, ","), defaultStringLimit)
	}
	return out
}
