// Package styles defines the visual styling for the command line output.
package styles

import "github.com/charmbracelet/lipgloss"

// Color definitions.
var (
	// Primary colors
	Primary   = lipgloss.Color("205") // Pink
	Secondary = lipgloss.Color("63")  // Purple
	Subtle    = lipgloss.Color("240") // Gray

	// Category colors
	PrimaryCategory   = lipgloss.Color("208") // Orange
	SecondaryCategory = lipgloss.Color("39")  // Blue
	AccessoryCategory = lipgloss.Color("42")  // Green

	// Status colors
	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow
	Info    = lipgloss.Color("39")  // Blue

	// Text colors
	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")
)

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// SubTitleStyle is used for section headings.
var SubTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Secondary)

// CardStyle creates a bordered card container.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(0, 1)

// LabelStyle styles row labels.
var LabelStyle = lipgloss.NewStyle().
	Foreground(TextSecondary)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// HelpKeyStyle styles command names in help text.
var HelpKeyStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// TableHeaderStyle styles table headers.
var TableHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary)

// StockOKStyle for stock comfortably above the threshold.
var StockOKStyle = lipgloss.NewStyle().
	Foreground(Success)

// StockNearStyle for stock within twice the threshold.
var StockNearStyle = lipgloss.NewStyle().
	Foreground(Warning)

// StockLowStyle for stock at or below the threshold.
var StockLowStyle = lipgloss.NewStyle().
	Foreground(Error)

// StockEmptyStyle for products with nothing left.
var StockEmptyStyle = lipgloss.NewStyle().
	Foreground(Error).
	Bold(true).
	Italic(true)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(Error)

// SuccessTextStyle for success messages.
var SuccessTextStyle = lipgloss.NewStyle().
	Foreground(Success)

// WarningTextStyle for warning messages.
var WarningTextStyle = lipgloss.NewStyle().
	Foreground(Warning)

// InfoTextStyle for info messages.
var InfoTextStyle = lipgloss.NewStyle().
	Foreground(Info)

// GetStockStyle returns the style for a stock level against its threshold.
func GetStockStyle(stock, minThreshold int) lipgloss.Style {
	switch {
	case stock <= 0:
		return StockEmptyStyle
	case stock <= minThreshold:
		return StockLowStyle
	case stock <= 2*minThreshold:
		return StockNearStyle
	default:
		return StockOKStyle
	}
}

// CategoryColor returns the chart color for a product category name.
func CategoryColor(category string) lipgloss.Color {
	switch category {
	case "primary":
		return PrimaryCategory
	case "secondary":
		return SecondaryCategory
	case "accessory":
		return AccessoryCategory
	default:
		return Subtle
	}
}
