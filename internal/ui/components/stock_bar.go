package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/parkinfusion/internal/logger"
	"github.com/j-veylop/parkinfusion/internal/models"
	"github.com/j-veylop/parkinfusion/internal/ui/styles"
)

// StockScale returns the stock value a full bar represents for products:
// the largest of any stock and twice any threshold.
func StockScale(products []models.Product) int {
	scale := 1
	for _, p := range products {
		scale = max(scale, p.Stock, 2*p.MinThreshold)
	}
	return scale
}

// RenderGradientBar renders a bar filled to percent, shading from red at the
// empty end to green at the full end.
func RenderGradientBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := int(float64(width) * percent / 100)
	filled = min(max(filled, 0), width)

	var b strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor("#ff6b6b", "#51cf66", t)
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}

	return b.String()
}

// RenderStockBar renders a product's stock as a labelled bar against scale.
func RenderStockBar(p models.Product, scale, width int) string {
	if scale < 1 {
		scale = 1
	}

	labelWidth := 24
	countWidth := 14
	barWidth := width - labelWidth - countWidth - 4
	if barWidth < 5 {
		barWidth = 5
	}

	percent := float64(p.Stock) / float64(scale) * 100
	bar := RenderGradientBar(percent, barWidth)

	label := styles.LabelStyle.
		Width(labelWidth).
		Render(truncate(p.Name, labelWidth))

	count := styles.GetStockStyle(p.Stock, p.MinThreshold).
		Width(countWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%d (min %d)", p.Stock, p.MinThreshold))

	return fmt.Sprintf("%s [%s] %s", label, bar, count)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
