// Package styles holds the lipgloss and glamour styling for the terminal UI.
package styles

import (
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/exp/charmtone"
)

var (
	// Panel frames. The focused panel gets the bright border.
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(charmtone.Charcoal).
		Padding(0, 1)
	FocusedPanel = Panel.BorderForeground(charmtone.Charple)

	PanelTitle        = lipgloss.NewStyle().Foreground(charmtone.Squid).Bold(true)
	FocusedPanelTitle = lipgloss.NewStyle().Foreground(charmtone.Zest).Bold(true)

	Cursor   = lipgloss.NewStyle().Reverse(true)
	Nibble   = lipgloss.NewStyle().Foreground(charmtone.Zest).Underline(true)
	Offset   = lipgloss.NewStyle().Foreground(charmtone.Charcoal)
	NullByte = lipgloss.NewStyle().Foreground(charmtone.Coral)
	Label    = lipgloss.NewStyle().Foreground(charmtone.Zest)

	// Status line variants.
	StatusSynced  = lipgloss.NewStyle().Foreground(charmtone.Guac)
	StatusPending = lipgloss.NewStyle().Foreground(charmtone.Malibu)
	StatusInput   = lipgloss.NewStyle().Foreground(charmtone.Mustard)
	StatusEnv     = lipgloss.NewStyle().Foreground(charmtone.Salt).Background(charmtone.Cherry).Bold(true)
	StatusInfo    = lipgloss.NewStyle().Foreground(charmtone.Squid)

	Menu = lipgloss.NewStyle().Foreground(charmtone.Squid)
)
