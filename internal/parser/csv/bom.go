package csv

import "strings"

const utf8BOM = "\uFEFF"

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(s string) string {
	return strings.TrimPrefix(s, utf8BOM)
}
