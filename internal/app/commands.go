package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/j-veylop/parkinfusion/internal/ledger"
	"github.com/j-veylop/parkinfusion/internal/models"
	"github.com/j-veylop/parkinfusion/internal/session"
	"github.com/j-veylop/parkinfusion/internal/ui/styles"
)

func (a *App) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// splitSub returns the leading subcommand, or def if args start with a flag.
func splitSub(args []string, def string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return def, args
	}
	return args[0], args[1:]
}

// parseFlags parses args; the flag package has already reported any error.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	return nil
}

func (a *App) runStatus(ctx context.Context, _ []string) error {
	l := a.mgr.Ledger()

	products, res := l.LoadProducts(ctx)
	if res == session.Corrupt || res == session.Unavailable {
		fmt.Fprintln(a.out, styles.WarningTextStyle.Render("Stored products could not be read; showing defaults."))
	}

	fmt.Fprintln(a.out, styles.TitleStyle.Render("Today "+l.Today()))

	if typ, ok := l.TodayType(ctx); ok {
		fmt.Fprintf(a.out, "Therapy: %s\n", styles.SuccessTextStyle.Render("logged ("+string(typ)+")"))
	} else {
		fmt.Fprintf(a.out, "Therapy: %s\n", styles.WarningTextStyle.Render("not logged yet"))
	}
	fmt.Fprintln(a.out)

	renderProducts(a.out, products, a.width)
	renderLowStock(a.out, products)
	return nil
}

func (a *App) runLog(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usageError("Usage: parkinfusion log <base|base+accessory>")
	}

	typ, err := models.ParseTherapyType(args[0])
	if err != nil {
		return err
	}

	outcome := a.mgr.LogDose(ctx, typ)
	if !outcome.Logged {
		logged, found := a.mgr.Ledger().TodayType(ctx)
		if !found {
			return errors.New("stored data could not be read; nothing was logged")
		}
		fmt.Fprintln(a.out, styles.WarningTextStyle.Render(
			fmt.Sprintf("Therapy already logged today (%s). Delete it first to change it.", logged)))
		return nil
	}

	fmt.Fprintln(a.out, styles.SuccessTextStyle.Render(
		fmt.Sprintf("Logged %s for %s", outcome.Event.Type, outcome.Event.Date)))

	if outcome.Diverged() {
		names := make([]string, len(outcome.Skipped))
		for i, c := range outcome.Skipped {
			names[i] = c.String()
		}
		fmt.Fprintln(a.out, styles.ErrorTextStyle.Render(
			"Out of stock, counted in the report but not taken from stock: "+strings.Join(names, ", ")))
	}

	renderLowStock(a.out, a.mgr.Ledger().Products(ctx))
	return nil
}

func (a *App) runStock(ctx context.Context, args []string) error {
	l := a.mgr.Ledger()
	sub, rest := splitSub(args, "list")

	switch sub {
	case "list":
		renderProducts(a.out, l.Products(ctx), a.width)
		return nil

	case "low":
		low := l.LowStockProducts(ctx)
		if len(low) == 0 {
			fmt.Fprintln(a.out, styles.SuccessTextStyle.Render("All products are above their minimum."))
			return nil
		}
		renderProducts(a.out, low, a.width)
		return nil

	case "adjust":
		if len(rest) != 2 {
			return a.usageError("Usage: parkinfusion stock adjust <id> <delta>")
		}
		id := rest[0]
		delta, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid delta %q: %w", rest[1], err)
		}
		if _, ok := l.Product(ctx, id); !ok {
			return fmt.Errorf("unknown product %q", id)
		}

		a.mgr.AdjustStock(ctx, id, delta)

		p, _ := l.Product(ctx, id)
		fmt.Fprintf(a.out, "%s: %s\n", p.Name,
			styles.GetStockStyle(p.Stock, p.MinThreshold).Render(strconv.Itoa(p.Stock)))
		return nil

	default:
		return a.usageError("Unknown stock command: %s", sub)
	}
}

func (a *App) runProduct(ctx context.Context, args []string) error {
	if len(args) < 3 || args[0] != "update" {
		return a.usageError("Usage: parkinfusion product update <id> key=value...\nKeys: name, code, minThreshold")
	}

	id := args[1]
	input := make(map[string]any, len(args)-2)
	for _, kv := range args[2:] {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid field %q (want key=value)", kv)
		}
		input[key] = value
	}

	patch, err := ledger.ParseProductPatch(input)
	if err != nil {
		return err
	}

	l := a.mgr.Ledger()
	if _, ok := l.Product(ctx, id); !ok {
		return fmt.Errorf("unknown product %q", id)
	}

	a.mgr.UpdateProduct(ctx, id, patch)

	p, _ := l.Product(ctx, id)
	renderProducts(a.out, []models.Product{p}, a.width)
	return nil
}

func (a *App) runEvents(ctx context.Context, args []string) error {
	sub, rest := splitSub(args, "list")

	switch sub {
	case "list":
		fs := a.newFlagSet("events")
		month := fs.String("month", "", "Only show events in this month (YYYY-MM)")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}

		events := a.mgr.Ledger().Events(ctx)
		if *month != "" {
			events = slices.DeleteFunc(events, func(e models.TherapyEvent) bool {
				return e.Month() != *month
			})
		}
		renderEvents(a.out, events)
		return nil

	case "delete":
		if len(rest) != 1 {
			return a.usageError("Usage: parkinfusion events delete <YYYY-MM-DD>")
		}
		date := rest[0]
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
		}

		n := a.mgr.DeleteEvent(ctx, date)
		fmt.Fprintf(a.out, "Deleted %d event(s) on %s\n", n, date)
		if n > 0 {
			fmt.Fprintln(a.out, styles.HelpStyle.Render("Stock and usage reports are not restored."))
		}
		return nil

	default:
		return a.usageError("Unknown events command: %s", sub)
	}
}

func (a *App) runReport(ctx context.Context, args []string) error {
	fs := a.newFlagSet("report")
	chart := fs.Bool("chart", false, "Plot usage per month")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	l := a.mgr.Ledger()
	reports := l.UsageReports(ctx)
	if len(reports) == 0 {
		fmt.Fprintln(a.out, styles.HelpStyle.Render("No usage recorded yet"))
		return nil
	}

	newest := slices.Clone(reports)
	ledger.SortReports(newest)
	renderReports(a.out, newest, l.MonthlyDays(ctx))

	if *chart {
		chronological := slices.Clone(newest)
		slices.Reverse(chronological)
		renderUsageCharts(a.out, chronological, l.MonthlyDays(ctx), a.width)
	}
	return nil
}

func (a *App) runReminder(ctx context.Context, args []string) error {
	sess := a.mgr.Session()
	sub, rest := splitSub(args, "show")

	switch sub {
	case "show":
		settings, _ := sess.ReminderSettings(ctx)
		renderReminder(a.out, settings)
		return nil

	case "set":
		settings, _ := sess.ReminderSettings(ctx)

		fs := a.newFlagSet("reminder set")
		at := fs.String("time", settings.Time, "Reminder time (HH:MM)")
		text := fs.String("text", settings.Text, "Reminder text")
		enabled := fs.Bool("enabled", settings.Enabled, "Whether the reminder is active")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}

		settings.Time = *at
		settings.Text = *text
		settings.Enabled = *enabled
		if err := sess.SaveReminderSettings(ctx, settings); err != nil {
			return err
		}
		renderReminder(a.out, settings)
		return nil

	case "snooze":
		settings, err := a.mgr.SnoozeReminder(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, styles.InfoTextStyle.Render(
			fmt.Sprintf("Reminder snoozed until %s", settings.SnoozedUntil.In(a.mgr.Location()).Format("15:04"))))
		return nil

	case "check":
		sent, err := a.mgr.CheckReminder(ctx)
		if err != nil {
			return err
		}
		if !sent {
			fmt.Fprintln(a.out, styles.HelpStyle.Render("No reminder due"))
			return nil
		}
		settings, _ := sess.ReminderSettings(ctx)
		fmt.Fprintln(a.out, styles.WarningTextStyle.Render(settings.Text))
		return nil

	default:
		return a.usageError("Unknown reminder command: %s", sub)
	}
}

func (a *App) runExport(ctx context.Context, args []string) error {
	fs := a.newFlagSet("export")
	formatName := fs.String("format", "", "json or yaml (default: from -out extension, else json)")
	out := fs.String("out", "", "Output file (default: stdout)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	format := session.FormatFromPath(*out)
	if *formatName != "" {
		var err error
		if format, err = session.ParseFormat(*formatName); err != nil {
			return err
		}
	}

	w, closeFn, err := a.openOutput(*out)
	if err != nil {
		return err
	}

	if err := session.EncodeUserData(w, a.mgr.Export(ctx), format); err != nil {
		_ = closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}

	if *out != "" && *out != "-" {
		fmt.Fprintf(a.errOut, "Exported to %s\n", *out)
	}
	return nil
}

func (a *App) runImport(ctx context.Context, args []string) error {
	fs := a.newFlagSet("import")
	formatName := fs.String("format", "", "json or yaml (default: from file extension)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return a.usageError("Usage: parkinfusion import [-format json|yaml] <file>")
	}
	path := fs.Arg(0)

	format := session.FormatFromPath(path)
	if *formatName != "" {
		var err error
		if format, err = session.ParseFormat(*formatName); err != nil {
			return err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	data, err := session.DecodeUserData(f, format)
	if err != nil {
		return err
	}
	if err := a.mgr.Import(ctx, data); err != nil {
		return err
	}

	fmt.Fprintln(a.out, styles.InfoTextStyle.Render(fmt.Sprintf(
		"Imported %d products, %d events and %d monthly reports for %s",
		len(data.Products), len(data.Events), len(data.UsageReports), a.mgr.Session().User())))
	return nil
}

func (a *App) runClear(ctx context.Context, args []string) error {
	fs := a.newFlagSet("clear")
	yes := fs.Bool("yes", false, "Confirm deleting all data")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if !*yes {
		return a.usageError("This deletes all data for %s. Run again with -yes to confirm.", a.mgr.Session().User())
	}

	if err := a.mgr.ClearUserData(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Cleared all data for %s\n", a.mgr.Session().User())
	return nil
}
