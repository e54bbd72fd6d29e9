// internal/routing/slug.go
//
// Slug and tenant-path helpers.
//
// MakeSlug turns free text (a version commit label, a page title) into a
// URL-safe slug restricted to ASCII a-z, 0-9, and "-".  BuildPath joins a
// tenant route prefix and a page slug with exactly one separator; the
// rewrite middleware uses it so /tenant/{slug} and {firstPage} never
// produce doubled or missing slashes.
//
// Rules (MakeSlug)
// ----------------
// 1. Lower-case everything.
// 2. Convert any run of non-[a-z0-9] characters to one "-".
// 3. Trim leading and trailing "-".
// 4. If the result is empty, return "item".
//
// Slugs are capped at 100 bytes; callers may truncate earlier.

package routing

import (
	"strings"
)

// MakeSlug converts text → lower-kebab ASCII.
func MakeSlug(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastWasDash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		default:
			if !lastWasDash {
				b.WriteRune('-')
				lastWasDash = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "item"
	}
	if len(slug) > 100 {
		slug = slug[:100]
		slug = strings.TrimRightFunc(slug, func(r rune) bool { return r == '-' })
	}
	return slug
}

// BuildPath joins prefix + slug ensuring exactly one leading slash and no
// duplicate separators.
func BuildPath(prefix, slug string) string {
	prefix = strings.Trim(prefix, "/")
	slug = strings.Trim(slug, "/")

	switch {
	case prefix == "" && slug == "":
		return "/"
	case prefix == "":
		return "/" + slug
	case slug == "":
		return "/" + prefix
	default:
		return "/" + prefix + "/" + slug
	}
}
