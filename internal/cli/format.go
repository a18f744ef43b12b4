package cli

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer renders numbers for humans: 10,000,000 rather than 10000000.
var printer = message.NewPrinter(language.English)

// formatInt renders n with thousands separators.
func formatInt(n int) string {
	return printer.Sprintf("%d", n)
}

// formatPercent renders a [0, 1] fraction as a percentage with two decimals.
func formatPercent(f float64) string {
	return printer.Sprintf("%.2f%%", f*100)
}
