package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed     = lipgloss.Color("#ff5555")
	colorGreen   = lipgloss.Color("#50fa7b")
	colorYellow  = lipgloss.Color("#f1fa8c")
	colorBlue    = lipgloss.Color("#8be9fd")
	colorPurple  = lipgloss.Color("#bd93f9")
	colorDim     = lipgloss.Color("#6272a4")
	colorBgLight = lipgloss.Color("#343746")
	colorFg      = lipgloss.Color("#f8f8f2")
	colorBorder  = lipgloss.Color("#44475a")
)

var (
	sectionListStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorBorder).
				Padding(0, 1)

	sectionItemStyle = lipgloss.NewStyle().
				Foreground(colorFg)

	sectionItemSelectedStyle = lipgloss.NewStyle().
					Foreground(colorFg).
					Background(colorBorder).
					Bold(true)

	planViewStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headingStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true).
			Padding(0, 0, 1, 0)

	textStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	riskHighStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	riskMediumStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	riskLowStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorBgLight).
			Padding(0, 1)

	helpBarStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)
