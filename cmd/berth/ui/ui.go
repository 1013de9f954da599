package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Every string rendered here goes through lipgloss, so the whole surface
// degrades to plain text once Configure drops the color profile.
var (
	accent  = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	good    = lipgloss.NewStyle().Foreground(lipgloss.Color("76"))
	bad     = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	caution = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	subtle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	frame   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	strong  = lipgloss.NewStyle().Bold(true)
)

// Accent highlights an identifier inside a message.
func Accent(s string) string { return accent.Render(s) }

// Bold emphasizes a display name.
func Bold(s string) string { return strong.Render(s) }

// Muted dims secondary detail.
func Muted(s string) string { return subtle.Render(s) }

// State renders a lifecycle state in its conventional color: green while
// running, yellow when stopped, dimmed when no instance exists.
func State(s string) string {
	switch s {
	case "running":
		return good.Render(s)
	case "stopped":
		return caution.Render(s)
	case "absent":
		return subtle.Render(s)
	}
	return s
}

func mark(style lipgloss.Style, glyph, format string, a ...any) string {
	return style.Render(glyph) + " " + fmt.Sprintf(format, a...)
}

// SuccessMsg reports a completed operation. No trailing newline.
func SuccessMsg(format string, a ...any) string { return mark(good, "✓", format, a...) }

// WarnMsg reports a skipped or degraded operation.
func WarnMsg(format string, a ...any) string { return mark(caution, "!", format, a...) }

// ErrorMsg reports a failed operation.
func ErrorMsg(format string, a ...any) string { return mark(bad, "✗", format, a...) }

// InfoMsg leads an informational block, like a status header.
func InfoMsg(format string, a ...any) string { return mark(accent, "●", format, a...) }

// Pair is one labeled value in a KeyValues block. Build it with KV.
type Pair struct {
	key   string
	value string
}

// KV builds a Pair.
func KV(key, value string) Pair { return Pair{key: key, value: value} }

// KeyValues renders pairs as "key: value" lines with the values aligned
// in one column, each line prefixed with indent.
func KeyValues(indent string, pairs ...Pair) string {
	width := 0
	for _, p := range pairs {
		if n := len(p.key); n > width {
			width = n
		}
	}

	var b strings.Builder
	for _, p := range pairs {
		label := p.key + ":" + strings.Repeat(" ", width-len(p.key))
		b.WriteString(indent)
		b.WriteString(subtle.Render(label))
		b.WriteString(" ")
		b.WriteString(p.value)
		b.WriteString("\n")
	}
	return b.String()
}

// Table renders headers and rows in a rounded-border grid.
func Table(headers []string, rows [][]string) string {
	body := lipgloss.NewStyle().Padding(0, 1)
	head := body.Foreground(lipgloss.Color("99")).Bold(true)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(frame).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return head
			}
			return body
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}
