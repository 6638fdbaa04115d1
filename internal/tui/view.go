package tui

import (
	"fmt"
	"strings"
)

func (m Model) View() string {
	if m.showHelp {
		return m.help.View(m.keys) + "\n" + StyleHelpBar.Render("press h to return")
	}

	var b strings.Builder
	for _, line := range m.state.Text {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	body := b.String()
	if m.height > 1 {
		body = padLines(body, m.height-1)
	}

	return body + m.statusLine()
}

// padLines pads s with blank lines (the way `less` leaves the rest of the
// screen empty past EOF) until it has exactly n lines.
func padLines(s string, n int) string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for len(lines) < n {
		lines = append(lines, "")
	}
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m Model) statusLine() string {
	if m.prompt != promptNone {
		return StylePrompt.Render(m.input.View())
	}

	s := m.state
	lineInfo := "?"
	if s.CurrentLine != nil {
		lineInfo = fmt.Sprintf("%d", *s.CurrentLine)
	}

	status := fmt.Sprintf("%s  line %s  offset %d/%d", s.FilePath, lineInfo, s.Offset, s.FileSize)
	if s.Follow {
		status += "  [follow]"
	}
	if len(s.Marks) > 0 {
		status += "  marks:" + strings.Join(s.Marks, ",")
	}

	if len(s.Errors) > 0 {
		msgs := make([]string, len(s.Errors))
		for i, e := range s.Errors {
			msgs[i] = e.Error()
		}
		return StyleError.Render(strings.Join(msgs, "; "))
	}

	return StyleStatusBar.Width(m.width).Render(status)
}
