package tui

import "github.com/charmbracelet/lipgloss"

// Palette.
//
//nolint:gochecknoglobals // Shared styling.
var (
	ColorHeader    = lipgloss.Color("39")
	ColorLabel     = lipgloss.Color("245")
	ColorValue     = lipgloss.Color("252")
	ColorMuted     = lipgloss.Color("240")
	ColorHighlight = lipgloss.Color("212")
	ColorSuccess   = lipgloss.Color("42")
	ColorWarning   = lipgloss.Color("214")
	ColorCritical  = lipgloss.Color("196")
)

// Text styles.
//
//nolint:gochecknoglobals // Shared styling.
var (
	HeaderStyle   = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	LabelStyle    = lipgloss.NewStyle().Foreground(ColorLabel)
	ValueStyle    = lipgloss.NewStyle().Foreground(ColorValue)
	SubtleStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	InfoStyle     = lipgloss.NewStyle().Foreground(ColorHeader)
	SuccessStyle  = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle  = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	CriticalStyle = lipgloss.NewStyle().Foreground(ColorCritical).Bold(true)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(ColorHeader).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(ColorMuted)
	TableSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	CheckedStyle       = lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
)

// Key names.
const (
	keyQuit   = "q"
	keyCtrlC  = "ctrl+c"
	keyEnter  = "enter"
	keyEsc    = "esc"
	keySlash  = "/"
	keySpace  = " "
	keyMore   = "n"
	keyReload = "r"
	keyAll    = "v"
	keyDelete = "D"
	keyActive = "A"
	keyOff    = "X"
	keyYes    = "y"
)

// Layout.
const (
	defaultWidth  = 100
	defaultHeight = 24
	minListHeight = 3
	minColWidth   = 6
	maxColWidth   = 32

	// chromeHeight is the number of lines around the list: title, header
	// (two with its border), footer, notice, input and help.
	chromeHeight = 7
)
