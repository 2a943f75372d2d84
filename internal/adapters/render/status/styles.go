package status

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	device    lipgloss.Style
	detail    lipgloss.Style
	warning   lipgloss.Style
	section   lipgloss.Style
	empty     lipgloss.Style
	key       lipgloss.Style
	meta      lipgloss.Style
	connected lipgloss.Style
	attention lipgloss.Style
	inactive  lipgloss.Style
	running   lipgloss.Style
	success   lipgloss.Style
	failure   lipgloss.Style
	info      lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		device:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:   lipgloss.NewStyle().MarginTop(1),
		empty:     lipgloss.NewStyle().Faint(true),
		key:       lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		meta:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		connected: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		attention: lipgloss.NewStyle().Foreground(lipgloss.Color("221")),
		inactive:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		running:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("159")),
		success:   lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		failure:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		info:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	}
}
