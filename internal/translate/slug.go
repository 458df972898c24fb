package translate

import "github.com/gosimple/slug"

// Slugify makes a lowercase, hyphen-separated, transliterated slug from text.
// fallback is returned when nothing usable is left.
func Slugify(text, fallback string) string {
	if s := slug.Make(text); s != "" {
		return s
	}
	return fallback
}
