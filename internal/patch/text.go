package patch

import "strings"

// utf8BOM is the byte-order mark some editors and models prepend to files.
const utf8BOM = "\uFEFF"

// StripBOM removes a leading UTF-8 byte-order mark.
// Returns the stripped text and whether a BOM was present.
func StripBOM(s string) (string, bool) {
	if strings.HasPrefix(s, utf8BOM) {
		return strings.TrimPrefix(s, utf8BOM), true
	}
	return s, false
}

// RestoreBOM puts the byte-order mark back if the original content had one.
func RestoreBOM(s string, hadBOM bool) string {
	if hadBOM && !strings.HasPrefix(s, utf8BOM) {
		return utf8BOM + s
	}
	return s
}

// DetectLineEnding reports the dominant line ending of content.
// Returns "\r\n" when CRLF pairs outnumber bare LFs; ties and
// LF-only content report "\n".
func DetectLineEnding(s string) string {
	crlf := strings.Count(s, "\r\n")
	if crlf > strings.Count(s, "\n")-crlf {
		return "\r\n"
	}
	return "\n"
}

// NormalizeToLF converts CRLF line endings to bare LF.
func NormalizeToLF(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// RestoreLineEnding converts LF-normalized content back to the given ending.
func RestoreLineEnding(s, ending string) string {
	if ending == "\n" {
		return s
	}
	return strings.ReplaceAll(NormalizeToLF(s), "\n", ending)
}
