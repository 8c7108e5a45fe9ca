package security

import (
	"strings"
)

// SafeFileComponent turns an externally supplied identifier into a string
// safe to use as a single path component. Track ids come from the server
// and must never escape the cache directory.
func SafeFileComponent(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':':
			b.WriteRune('_')
		case r < 32:
			// drop control characters
		default:
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	// A name of only dots would resolve to the parent directory
	if strings.Trim(cleaned, ".") == "" {
		return "_"
	}
	return cleaned
}
