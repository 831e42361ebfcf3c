// Package render produces the HTML summary of an export.
package render

import "strings"

var fileNameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

// SafeFileName converts a function name to a file name. Names longer than
// 200 bytes are cut.
func SafeFileName(name string) string {
	s := fileNameReplacer.Replace(name)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

func barWidth(count, total, max int) int {
	if total == 0 {
		return 0
	}
	w := count * max / total
	if w < 2 {
		w = 2
	}
	return w
}
