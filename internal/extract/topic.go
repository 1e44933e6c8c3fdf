package extract

import (
	"strings"
	"unicode"
)

// DetectTopic derives a topic label from a text fragment. The first line that
// looks like a heading (short, ends with a colon or starts uppercase) becomes
// the topic with colons stripped; a fragment with no such line maps to
// "General Content".
func DetectTopic(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 10 || len(line) >= 100 {
			continue
		}
		runes := []rune(line)
		if strings.HasSuffix(line, ":") || unicode.IsUpper(runes[0]) {
			return strings.TrimSpace(strings.ReplaceAll(line, ":", ""))
		}
	}
	return "General Content"
}
