package analysis

import (
	"strings"
	"unicode/utf8"
)

// fitLength brings text into [min, max] bytes. Short text is extended with the
// filler sentences in order; long text is cut at the last sentence end that fits,
// or at a word boundary.
func fitLength(text string, min, max int, filler ...string) string {
	text = strings.TrimSpace(text)
	for _, f := range filler {
		if len(text) >= min {
			break
		}
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		if text == "" {
			text = f
		} else {
			text += " " + f
		}
	}
	if len(text) <= max {
		return text
	}
	cut := text[:runeBoundary(text, max)]
	if i := strings.LastIndex(cut, ". "); i >= 0 && i+1 >= min {
		return cut[:i+1]
	}
	if strings.HasSuffix(cut, ".") && len(cut) >= min {
		return cut
	}
	if i := strings.LastIndexByte(cut, ' '); i >= min {
		return cut[:i]
	}
	return cut
}

// runeBoundary returns the largest index <= n that starts a rune.
func runeBoundary(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:runeBoundary(s, n)]
}

func joinLimited(parts []string, sep string, limit int) string {
	var sb strings.Builder
	for _, p := range parts {
		if sb.Len()+len(p)+len(sep) > limit {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func title(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}
