package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/hupe1980/wingman/client"
	"github.com/hupe1980/wingman/core"
)

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
}

func newStyles() styles {
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")),
		label: lipgloss.NewStyle().Faint(true),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

func (s styles) row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.label.Render(fmt.Sprintf("%-7s", label)), value)
}

func renderHealth(h *client.Health, url string) string {
	s := newStyles()

	modelLine := s.warn.Render("not configured")
	if h.Model != nil {
		modelLine = s.ok.Render(*h.Model)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		s.title.Render("Wingman"),
		s.row("url", url),
		s.row("port", fmt.Sprint(h.Port)),
		s.row("model", modelLine),
	)
}

func renderServing(url string, state core.ConfiguredState, modelID string) string {
	s := newStyles()

	problem := state.LastError
	if problem == "" {
		problem = "not configured"
	}
	modelLine := s.warn.Render(problem)
	if state.Configured {
		modelLine = s.ok.Render(modelID)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		s.title.Render("Wingman is serving"),
		s.row("url", url),
		s.row("model", modelLine),
	)
}
