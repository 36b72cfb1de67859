package observability

import "unicode"

const maxFieldRunes = 256

// scrub strips control characters that could forge log lines and caps the
// rune count. Tabs and line breaks survive because zap escapes them itself.
func scrub(value string, limit int) string {
	if limit <= 0 {
		limit = maxFieldRunes
	}

	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		cleaned = append(cleaned, r)
	}
	if len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return string(cleaned)
}

// SanitizeRoute cleans a request path before it reaches a log field.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return scrub(route, 180)
}

// SanitizeMethod cleans an HTTP method string.
func SanitizeMethod(method string) string {
	return scrub(method, 10)
}

// SanitizeUserID caps actor identifiers so a hostile X-Actor-Id header cannot
// flood or forge log output.
func SanitizeUserID(uid string) string {
	if len(uid) == 0 {
		return ""
	}
	return scrub(uid, 64)
}
