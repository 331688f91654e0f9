package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	plainStyle  = lipgloss.NewStyle()
	linkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true)

	categoryStyles = map[Category]lipgloss.Style{
		CategoryPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		CategoryProcessed: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		CategoryError:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		CategoryOutdated:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
)

func StyleFor(c Category) lipgloss.Style {
	if s, ok := categoryStyles[c]; ok {
		return s
	}
	return plainStyle
}

// Terminal renders rows as aligned text lines.
func Terminal(rows []Row) string {
	if len(rows) == 0 {
		return "(queue is empty)\n"
	}

	nameWidth := len("FILE")
	for _, r := range rows {
		nameWidth = max(nameWidth, lipgloss.Width(r.FileName))
	}
	nameCol := lipgloss.NewStyle().Width(nameWidth + 2)
	statusCol := lipgloss.NewStyle().Width(16)

	var b strings.Builder
	b.WriteString(nameCol.Render(headerStyle.Render("FILE")))
	b.WriteString(statusCol.Render(headerStyle.Render("STATUS")))
	b.WriteString(headerStyle.Render("RESULT"))
	b.WriteString("\n")

	for _, r := range rows {
		status := r.Status
		if r.Secondary != "" {
			status += " #" + r.Secondary
		}

		var result string
		if r.Download != nil {
			result = linkStyle.Render(r.Download.Href)
		}

		b.WriteString(nameCol.Render(r.FileName))
		b.WriteString(statusCol.Render(StyleFor(r.Category).Render(status)))
		b.WriteString(result)
		b.WriteString("\n")
	}
	return b.String()
}
