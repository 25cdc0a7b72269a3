package downloader

import (
	"strings"
)

const unsafeFilenameChars = `<>:"/\|?*`

// Sanitize replaces characters that are unsafe in filenames on common
// filesystems with an underscore. Length and all other runes are preserved.
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(unsafeFilenameChars, r) {
			return '_'
		}
		return r
	}, name)
}
