package domain

import "strings"

// Slugify converts a display name to a URL-safe slug.
//
// Letters are lowercased, digits kept, and runs of spaces, hyphens or
// underscores collapse into one hyphen. Everything else is dropped, as are
// leading and trailing hyphens.
//
//	Slugify("Warung Bu Sri")     // "warung-bu-sri"
//	Slugify("Kopi & Roti  24/7") // "kopi-roti-247"
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
		case r == ' ' || r == '-' || r == '_':
			pendingHyphen = b.Len() > 0
			continue
		default:
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
