package telegram

import "strings"

// reserved are the MarkdownV2 characters that must be backslash-escaped outside entities.
const reserved = "_*[]()~`>#+-=|{}.!"

func isReserved(r rune) bool {
	return strings.ContainsRune(reserved, r)
}

// Escape prefixes every MarkdownV2 reserved character with a backslash. A backslash
// that already escapes a reserved character (or another backslash) is kept as is, so
// Escape(Escape(s)) == Escape(s).
func Escape(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	sb.Grow(len(s) + len(s)/8)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			if i+1 < len(runes) && (runes[i+1] == '\\' || isReserved(runes[i+1])) {
				sb.WriteRune(r)
				sb.WriteRune(runes[i+1])
				i++
				continue
			}
			sb.WriteString(`\\`)
		case isReserved(r):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// EscapeURL escapes the target of an inline link, where only ')' and '\' are special.
func EscapeURL(u string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(u)
}
