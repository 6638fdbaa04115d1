package text

import "strings"

// ExpandTabs replaces tab characters in line with spaces so that each tab
// stop lands on a multiple of width. A width of 0 strips tabs entirely
// instead of expanding them.
func ExpandTabs(line string, width int) string {
	if !strings.Contains(line, "\t") {
		return line
	}
	if width == 0 {
		return strings.ReplaceAll(line, "\t", "")
	}

	parts := strings.Split(line, "\t")
	var b strings.Builder
	for _, part := range parts {
		stop := divCeil(len(part)+1, width) * width
		b.WriteString(part)
		for pad := len(part); pad < stop; pad++ {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func divCeil(a, b int) int {
	return (a + b - 1) / b
}
