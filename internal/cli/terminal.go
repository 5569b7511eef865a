package cli

import (
	"fmt"
	"strings"

	"github.com/bastiangx/texserve/pkg/engine"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	typeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")).Italic(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
)

// Render formats a completion result for the terminal, at most limit rows.
func Render(res engine.Result, limit int) string {
	suggestions := res.Suggestions
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Found %d %s suggestions for '%s':", len(res.Suggestions), res.Kind, res.Prefix)))
	b.WriteByte('\n')
	for i, s := range suggestions {
		line := fmt.Sprintf("%2d. %s", i+1, textStyle.Render(s.DisplayText))
		if s.Type != "" {
			line += " " + typeStyle.Render(s.Type)
		}
		if s.RightLabel != "" {
			line += " " + labelStyle.Render("("+s.RightLabel+")")
		}
		if s.Description != "" {
			desc, _, _ := strings.Cut(s.Description, "\n")
			line += " " + labelStyle.Render(desc)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
