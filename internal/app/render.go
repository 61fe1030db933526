package app

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/j-veylop/parkinfusion/internal/models"
	"github.com/j-veylop/parkinfusion/internal/ui/components"
	"github.com/j-veylop/parkinfusion/internal/ui/styles"
)

func renderProducts(w io.Writer, products []models.Product, width int) {
	fmt.Fprintln(w, styles.SubTitleStyle.Render("Stock"))

	scale := components.StockScale(products)
	for _, p := range products {
		fmt.Fprintf(w, "%-11s %s\n", p.ID, components.RenderStockBar(p, scale, width-12))
	}
}

func renderLowStock(w io.Writer, products []models.Product) {
	for _, p := range products {
		if !p.IsLow() {
			continue
		}
		msg := fmt.Sprintf("Low stock: %s (%s) has %d left, minimum %d", p.Name, p.Code, p.Stock, p.MinThreshold)
		fmt.Fprintln(w, styles.GetStockStyle(p.Stock, p.MinThreshold).Render(msg))
	}
}

func renderEvents(w io.Writer, events []models.TherapyEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, styles.HelpStyle.Render("No therapy events"))
		return
	}

	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b models.TherapyEvent) int {
		return strings.Compare(b.Date, a.Date)
	})

	fmt.Fprintln(w, styles.TableHeaderStyle.Render(fmt.Sprintf("%-12s %-16s %s", "Date", "Type", "Logged at")))
	for _, e := range sorted {
		fmt.Fprintf(w, "%-12s %-16s %s\n", e.Date, e.Type, e.Time().Format("15:04"))
	}
}

func renderReports(w io.Writer, reports []models.UsageReport, days map[string]int) {
	header := fmt.Sprintf("%-8s %5s %8s %10s %10s", "Month", "Days", "Primary", "Secondary", "Accessory")
	fmt.Fprintln(w, styles.TableHeaderStyle.Render(header))

	for _, r := range reports {
		fmt.Fprintf(w, "%-8s %5d %8d %10d %10d\n", r.Month, days[r.Month], r.Primary, r.Secondary, r.Accessory)
	}
}

func renderUsageCharts(w io.Writer, chronological []models.UsageReport, days map[string]int, width int) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.SubTitleStyle.Render("Consumables per month"))
	fmt.Fprintln(w, components.RenderUsageChart(chronological, width-10, 8))
	fmt.Fprintln(w, components.RenderLegend(components.CategoryLegend()))

	values := make([]float64, len(chronological))
	labels := make([]string, len(chronological))
	for i, r := range chronological {
		values[i] = float64(days[r.Month])
		labels[i] = r.Month
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", styles.SubTitleStyle.Render("Therapy days"), components.RenderSparkline(values, len(values)))
	fmt.Fprintln(w, components.RenderBarChart(values, labels, width))
}

func renderReminder(w io.Writer, r models.ReminderSettings) {
	state := styles.WarningTextStyle.Render("disabled")
	if r.Enabled {
		state = styles.SuccessTextStyle.Render("enabled")
	}

	lines := []string{
		styles.SubTitleStyle.Render("Daily reminder"),
		styles.LabelStyle.Render("Status: ") + state,
		styles.LabelStyle.Render("Time:   ") + r.Time,
		styles.LabelStyle.Render("Text:   ") + r.Text,
	}
	if r.SnoozedUntil != nil {
		lines = append(lines, styles.LabelStyle.Render("Snoozed until: ")+r.SnoozedUntil.Format("2006-01-02 15:04"))
	}
	if r.LastNotified != "" {
		lines = append(lines, styles.LabelStyle.Render("Last sent: ")+r.LastNotified)
	}

	body := strings.Join(lines, "\n")
	fmt.Fprintln(w, styles.CardStyle.Render(body))
}
